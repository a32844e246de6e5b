package models

import "sync"

// User roles. The role is fixed at registration time.
const (
	RoleOwner  = "Owner"
	RoleSeeker = "Seeker"
)

// Book statuses. Only the book's owner may change the status.
const (
	StatusAvailable = "Available"
	StatusRented    = "Rented/Exchanged"
)

// User represents a registered account.
type User struct {
	ID           string `json:"id"`           // Unique ID (UUID, dashless)
	Name         string `json:"name"`
	MobileNumber string `json:"mobileNumber"` // Optional, defaults to empty
	Email        string `json:"email"`        // Unique, used for login
	Password     string `json:"password"`     // Stored verbatim; never included in API responses
	Role         string `json:"role"`         // RoleOwner or RoleSeeker
}

// Book represents a single listing.
type Book struct {
	ID            string  `json:"id"`      // Unique ID (UUID, dashless)
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Genre         string  `json:"genre"` // Optional, defaults to empty
	Location      string  `json:"location"`
	Contact       string  `json:"contact"`
	OwnerID       string  `json:"ownerId"`       // User ID of the owner, set at creation
	Status        string  `json:"status"`        // StatusAvailable or StatusRented
	CoverImageURL *string `json:"coverImageUrl"` // Public path of the cover, null until one is uploaded
}

// OwnerInfo is the public slice of an owner's account attached to listings.
type OwnerInfo struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

// BookWithOwner is a Book enhanced with the owner's contact details.
// OwnerInfo is nil (serialized as null) when the owner record no longer exists.
type BookWithOwner struct {
	Book
	OwnerInfo *OwnerInfo `json:"ownerInfo"`
}

// Database holds all application data and manages concurrent access.
// The Users and Books slices form the persisted document; order is creation order.
type Database struct {
	Users []User `json:"users"`
	Books []Book `json:"books"`

	// Mutex for thread-safe access to the slices
	Mu sync.RWMutex `json:"-"` // Exclude mutex from serialization
}
