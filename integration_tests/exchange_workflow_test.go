package integration_tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	serverBinaryPath = "./app_binary"      // Relative to integration_tests directory
	testDbPath       = "./test_books.json" // Relative to integration_tests directory
	testUploadsDir   = "./test_uploads"
	testPort         = "8091"
	serverBaseURL    = "http://localhost:" + testPort
	readinessTimeout = 15 * time.Second        // Max time to wait for server start
	readinessPoll    = 200 * time.Millisecond  // How often to check if server is ready
)

var httpClient = &http.Client{
	Timeout: 10 * time.Second,
}

// --- Test Main: Setup & Teardown ---

func TestMain(m *testing.M) {
	log.Println("INFO: Starting integration test setup...")

	// --- 1. Build the server binary ---
	log.Println("INFO: Building server binary...")
	buildCmd := exec.Command("go", "build", "-o", serverBinaryPath, "..")
	buildCmd.Dir = "."
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		log.Fatalf("FATAL: Failed to build server binary: %v\nOutput:\n%s", err, string(buildOutput))
	}
	log.Printf("INFO: Server binary built successfully at %s", serverBinaryPath)

	absBinaryPath, _ := filepath.Abs(serverBinaryPath)
	absDbPath, _ := filepath.Abs(testDbPath)
	absUploadsDir, _ := filepath.Abs(testUploadsDir)

	// --- 2. Prepare environment for the server ---
	env := append(os.Environ(),
		fmt.Sprintf("BOOKEXCHANGE_DB_FILE_PATH=%s", absDbPath),
		fmt.Sprintf("BOOKEXCHANGE_UPLOADS_DIR=%s", absUploadsDir),
		fmt.Sprintf("BOOKEXCHANGE_LISTEN_PORT=%s", testPort),
		"BOOKEXCHANGE_LISTEN_ADDRESS=0.0.0.0",
		"BOOKEXCHANGE_SAVE_INTERVAL=0s", // Persist immediately during tests
		"BOOKEXCHANGE_ENABLE_BACKUP=false",
	)

	// --- 3. Run the server binary as a background process ---
	log.Printf("INFO: Starting server process: %s (port %s, DB: %s)", absBinaryPath, testPort, absDbPath)
	serverCmd := exec.Command(absBinaryPath)
	serverCmd.Env = env
	serverCmd.Stdout = os.Stdout
	serverCmd.Stderr = os.Stderr
	err = serverCmd.Start()
	if err != nil {
		log.Fatalf("FATAL: Failed to start server process: %v", err)
	}
	log.Printf("INFO: Server process started (PID: %d)", serverCmd.Process.Pid)

	// --- 4. Wait for the server to be ready ---
	log.Printf("INFO: Waiting for server to become ready at %s...", serverBaseURL)
	ready := waitForServerReady(serverBaseURL+"/", readinessTimeout) // The root banner serves as health check
	if !ready {
		_ = serverCmd.Process.Signal(syscall.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		_ = serverCmd.Process.Kill()
		log.Fatalf("FATAL: Server did not become ready within %v", readinessTimeout)
	}
	log.Println("INFO: Server is ready!")

	// --- 5. Run the actual tests ---
	exitCode := m.Run()
	log.Printf("INFO: Test functions finished with exit code %d.", exitCode)

	// --- 6. Teardown: Stop the server process ---
	log.Println("INFO: Tearing down - stopping server process...")
	err = serverCmd.Process.Signal(syscall.SIGTERM)
	if err != nil {
		log.Printf("WARN: Failed to send SIGTERM to server process: %v", err)
	} else {
		time.Sleep(500 * time.Millisecond)
	}
	err = serverCmd.Process.Kill()
	if err != nil && !strings.Contains(err.Error(), "process already finished") {
		log.Printf("WARN: Failed to kill server process: %v", err)
	} else {
		log.Println("INFO: Server process stopped.")
	}
	_, _ = serverCmd.Process.Wait()

	// --- 7. Teardown: Clean up artifacts ---
	log.Println("INFO: Cleaning up test artifacts...")
	for _, path := range []string{serverBinaryPath, testDbPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: Failed to remove test artifact '%s': %v", path, err)
		}
	}
	if err := os.RemoveAll(testUploadsDir); err != nil {
		log.Printf("WARN: Failed to remove test uploads dir '%s': %v", testUploadsDir, err)
	}

	log.Println("INFO: Integration test teardown complete.")
	os.Exit(exitCode)
}

// --- Helper Functions ---

// waitForServerReady polls a URL until it gets a 200 OK or times out.
func waitForServerReady(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := httpClient.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return true
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(readinessPoll)
	}
	return false
}

// makeRequest is a generic helper to make HTTP requests and handle basic errors/decoding.
// It automatically handles JSON marshalling for the body if provided. If userID is set,
// it is sent as the x-user-id header.
func makeRequest(t *testing.T, method, urlPath, userID string, body interface{}, targetStruct interface{}) (*http.Response, error) {
	t.Helper()

	fullURL := serverBaseURL + urlPath
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body for %s %s: %w", method, urlPath, err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s %s: %w", method, urlPath, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("x-user-id", userID)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request %s %s: %w", method, urlPath, err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, fmt.Errorf("failed to read response body for %s %s: %w", method, urlPath, err)
	}
	log.Printf("DEBUG: Response %s %s Status: %s Body: %s", method, urlPath, resp.Status, string(respBodyBytes))

	if targetStruct != nil && len(respBodyBytes) > 0 {
		if err := json.Unmarshal(respBodyBytes, targetStruct); err != nil {
			return resp, fmt.Errorf("failed to decode JSON response for %s %s into %T: %w. Body: %s", method, urlPath, targetStruct, err, string(respBodyBytes))
		}
	}

	return resp, nil
}

// --- API Request/Response Structs ---

type RegisterRequest struct {
	Name         string `json:"name"`
	MobileNumber string `json:"mobileNumber"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginResponse struct {
	UserResponse
	Token string `json:"token"`
}

type BookRequest struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Genre    string `json:"genre"`
	Location string `json:"location"`
	Contact  string `json:"contact"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type BookResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Genre         string  `json:"genre"`
	Location      string  `json:"location"`
	Contact       string  `json:"contact"`
	OwnerID       string  `json:"ownerId"`
	Status        string  `json:"status"`
	CoverImageURL *string `json:"coverImageUrl"`
	OwnerInfo     *struct {
		Name   string `json:"name"`
		Email  string `json:"email"`
		Mobile string `json:"mobile"`
	} `json:"ownerInfo,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// --- Test Functions ---

// TestExchangeWorkflow walks a full owner/seeker scenario end to end.
func TestExchangeWorkflow(t *testing.T) {
	t.Log("INFO: Starting TestExchangeWorkflow...")
	assert := require.New(t)

	// Unique emails per run so the test DB can be reused safely
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	ownerEmail := "owner." + suffix + "@example.com"
	seekerEmail := "seeker." + suffix + "@example.com"

	var ownerID, seekerID string
	var bookID string

	// --- Step 1: Register the owner ---
	t.Log("Step 1: Registering owner...")
	var ownerResp UserResponse
	resp, err := makeRequest(t, http.MethodPost, "/api/users/register", "", RegisterRequest{
		Name: "Olivia Owner", MobileNumber: "555-0101", Email: ownerEmail, Password: "ownerpass", Role: "Owner",
	}, &ownerResp)
	assert.NoError(err, "Step 1: Register owner request failed")
	assert.Equal(http.StatusCreated, resp.StatusCode, "Step 1: Register owner expected status 201")
	ownerID = ownerResp.ID
	assert.NotEmpty(ownerID)

	// --- Step 2: Register the seeker ---
	t.Log("Step 2: Registering seeker...")
	var seekerResp UserResponse
	resp, err = makeRequest(t, http.MethodPost, "/api/users/register", "", RegisterRequest{
		Name: "Sam Seeker", Email: seekerEmail, Password: "seekerpass", Role: "Seeker",
	}, &seekerResp)
	assert.NoError(err, "Step 2: Register seeker request failed")
	assert.Equal(http.StatusCreated, resp.StatusCode, "Step 2: Register seeker expected status 201")
	seekerID = seekerResp.ID

	// --- Step 3: Log in as the owner and check the mock token ---
	t.Log("Step 3: Logging in as owner...")
	var loginResp LoginResponse
	resp, err = makeRequest(t, http.MethodPost, "/api/users/login", "", LoginRequest{
		Email: ownerEmail, Password: "ownerpass",
	}, &loginResp)
	assert.NoError(err, "Step 3: Login request failed")
	assert.Equal(http.StatusOK, resp.StatusCode, "Step 3: Login expected status 200")
	assert.Equal("mock-token-for-"+ownerID, loginResp.Token, "Step 3: Token should be derived from the user id")

	// --- Step 4: Owner lists a book ---
	t.Log("Step 4: Creating a book listing...")
	var createdBook BookResponse
	resp, err = makeRequest(t, http.MethodPost, "/api/books", ownerID, BookRequest{
		Title: "The Left Hand of Darkness", Author: "Ursula K. Le Guin",
		Genre: "Science Fiction", Location: "Portland", Contact: ownerEmail,
	}, &createdBook)
	assert.NoError(err, "Step 4: Create book request failed")
	assert.Equal(http.StatusCreated, resp.StatusCode, "Step 4: Create book expected status 201")
	bookID = createdBook.ID
	assert.Equal("Available", createdBook.Status)
	assert.Nil(createdBook.CoverImageURL)

	// --- Step 5: Seeker cannot list books ---
	t.Log("Step 5: Verifying a seeker cannot create listings...")
	resp, err = makeRequest(t, http.MethodPost, "/api/books", seekerID, BookRequest{
		Title: "Illicit", Author: "N", Location: "X", Contact: "y",
	}, nil)
	assert.NoError(err)
	assert.Equal(http.StatusForbidden, resp.StatusCode, "Step 5: Seeker create expected status 403")

	// --- Step 6: Seeker browses with a filter and sees owner contact info ---
	t.Log("Step 6: Browsing listings with a genre filter...")
	var listings []BookResponse
	resp, err = makeRequest(t, http.MethodGet, "/api/books?genre=Science%20Fiction&location=port", "", nil, &listings)
	assert.NoError(err, "Step 6: List books request failed")
	assert.Equal(http.StatusOK, resp.StatusCode)
	found := false
	for _, listing := range listings {
		if listing.ID == bookID {
			found = true
			assert.NotNil(listing.OwnerInfo, "Step 6: Listings should carry owner contact info")
			assert.Equal(ownerEmail, listing.OwnerInfo.Email)
		}
	}
	assert.True(found, "Step 6: The created book should appear in the filtered listing")

	// --- Step 7: Owner marks the book as exchanged ---
	t.Log("Step 7: Marking the book Rented/Exchanged...")
	var patched BookResponse
	resp, err = makeRequest(t, http.MethodPatch, "/api/books/"+bookID+"/status", ownerID, StatusRequest{
		Status: "Rented/Exchanged",
	}, &patched)
	assert.NoError(err, "Step 7: Status patch request failed")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("Rented/Exchanged", patched.Status)

	// --- Step 8: Seeker cannot delete the owner's book ---
	t.Log("Step 8: Verifying a non-owner cannot delete...")
	var errResp ErrorResponse
	resp, err = makeRequest(t, http.MethodDelete, "/api/books/"+bookID, seekerID, nil, &errResp)
	assert.NoError(err)
	assert.Equal(http.StatusForbidden, resp.StatusCode, "Step 8: Non-owner delete expected status 403")
	assert.Equal("Forbidden: You do not own this book or user ID is missing.", errResp.Message)

	// --- Step 9: Owner deletes the listing ---
	t.Log("Step 9: Deleting the listing as the owner...")
	resp, err = makeRequest(t, http.MethodDelete, "/api/books/"+bookID, ownerID, nil, nil)
	assert.NoError(err, "Step 9: Delete request failed")
	assert.Equal(http.StatusNoContent, resp.StatusCode, "Step 9: Owner delete expected status 204")

	// The book is gone
	resp, err = makeRequest(t, http.MethodGet, "/api/books/"+bookID, "", nil, nil)
	assert.NoError(err)
	assert.Equal(http.StatusNotFound, resp.StatusCode, "Step 9: The deleted book should be gone")
}
