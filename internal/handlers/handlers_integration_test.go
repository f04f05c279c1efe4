package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"obrolan/internal/handlers"
	"obrolan/internal/middleware"
	"obrolan/internal/models"
	"obrolan/internal/repositories"
	"obrolan/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbCounter int64

// setupApp builds a Fiber app over a fresh in-memory SQLite database with
// the full route surface wired the way main does it.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	// Each setup gets its own named in-memory database. cache=shared keeps
	// every pooled connection on the same database.
	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)

	err = db.AutoMigrate(&models.User{}, &models.Message{})
	assert.NoError(t, err)

	userRepo := repositories.NewGORMUserRepository(db)
	messageRepo := repositories.NewGORMMessageRepository(db)

	authService := services.NewAuthService(userRepo, jwtSecret)
	chatService := services.NewChatService(messageRepo, userRepo, nil) // no broker in tests

	authHandler := handlers.NewAuthHandler(authService, false)
	chatHandler := handlers.NewChatHandler(chatService)

	app := fiber.New()
	api := app.Group("/api")
	authHandler.RegisterRoutes(api)

	protected := api.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterProtectedRoutes(protected)
	chatHandler.RegisterRoutes(protected)

	return app, db
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		assert.NoError(t, err)
		body = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, app *fiber.App, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func signupPayload(fullName, username, password, gender string) map[string]string {
	return map[string]string{
		"fullName":        fullName,
		"username":        username,
		"password":        password,
		"confirmPassword": password,
		"gender":          gender,
	}
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "jwt" {
			return c
		}
	}
	t.Fatal("no jwt cookie in response")
	return nil
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	return body
}

func TestSignup(t *testing.T) {
	app, db := setupApp(t)

	resp := postJSON(t, app, "/api/auth/signup", signupPayload("Ada Lovelace", "ada", "x", "female"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := readBody(t, resp)
	var profile map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &profile))
	assert.NotEmpty(t, profile["id"])
	assert.Equal(t, "Ada Lovelace", profile["fullName"])
	assert.Equal(t, "ada", profile["username"])
	assert.Contains(t, profile["profilePic"], "girl")
	assert.Contains(t, profile["profilePic"], "username=ada")

	// The password hash must never appear in the response, under any key.
	assert.NotContains(t, strings.ToLower(string(body)), "password")

	// Session cookie attributes
	cookie := sessionCookie(t, resp)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int((15 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	// The stored record carries a hash, not the plaintext.
	var stored models.User
	assert.NoError(t, db.First(&stored, "username = ?", "ada").Error)
	assert.NotEqual(t, "x", stored.Password)
	assert.NotEmpty(t, stored.Password)
}

func TestSignupPasswordMismatch(t *testing.T) {
	app, db := setupApp(t)

	payload := signupPayload("Ada Lovelace", "ada", "x", "female")
	payload["confirmPassword"] = "y"
	resp := postJSON(t, app, "/api/auth/signup", payload)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Passwords do not match"}`, string(readBody(t, resp)))

	// No directory write happened.
	var count int64
	assert.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSignupDuplicateUsername(t *testing.T) {
	app, db := setupApp(t)

	resp := postJSON(t, app, "/api/auth/signup", signupPayload("Ada Lovelace", "ada", "x", "female"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/api/auth/signup", signupPayload("Other Ada", "ada", "different", "female"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var result map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &result))
	assert.Equal(t, "Username already exists", result["error"])

	// Exactly one record for the username.
	var count int64
	assert.NoError(t, db.Model(&models.User{}).Where("username = ?", "ada").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSignupInvalidGender(t *testing.T) {
	app, db := setupApp(t)

	payload := signupPayload("Some User", "someone", "pw", "other")
	resp := postJSON(t, app, "/api/auth/signup", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var result map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &result))
	assert.Equal(t, "Invalid user data", result["error"])

	var count int64
	assert.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestLogin(t *testing.T) {
	app, _ := setupApp(t)

	resp := postJSON(t, app, "/api/auth/signup", signupPayload("Ada Lovelace", "ada", "x", "female"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Correct credentials
	resp = postJSON(t, app, "/api/auth/login", map[string]string{"username": "ada", "password": "x"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var profile map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &profile))
	assert.Equal(t, "ada", profile["username"])
	cookie := sessionCookie(t, resp)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	// Wrong password and unknown username must be indistinguishable:
	// same status, byte-identical bodies.
	wrongPass := postJSON(t, app, "/api/auth/login", map[string]string{"username": "ada", "password": "wrong"})
	unknownUser := postJSON(t, app, "/api/auth/login", map[string]string{"username": "nobody", "password": "x"})

	assert.Equal(t, http.StatusUnauthorized, wrongPass.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.StatusCode)
	assert.Equal(t, readBody(t, wrongPass), readBody(t, unknownUser))
}

func TestLogout(t *testing.T) {
	app, _ := setupApp(t)

	resp := postJSON(t, app, "/api/auth/signup", signupPayload("Ada Lovelace", "ada", "x", "female"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	session := sessionCookie(t, resp)

	// The session works before logout.
	resp = getJSON(t, app, "/api/auth/me", session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, "/api/auth/logout", nil, session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The clearing cookie is empty and already expired.
	cleared := sessionCookie(t, resp)
	assert.Empty(t, cleared.Value)
	assert.True(t, cleared.Expires.Before(time.Now()))

	// Presenting only the cleared cookie is unauthenticated.
	resp = getJSON(t, app, "/api/auth/me", cleared)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app, _ := setupApp(t)

	for _, path := range []string{"/api/auth/me", "/api/users", "/api/messages/some-id"} {
		resp := getJSON(t, app, path)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	// A tampered token is rejected too.
	resp := getJSON(t, app, "/api/users", &http.Cookie{Name: "jwt", Value: "not.a.token"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatFlow(t *testing.T) {
	app, _ := setupApp(t)

	resp := postJSON(t, app, "/api/auth/signup", signupPayload("Ada Lovelace", "ada", "x", "female"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	adaSession := sessionCookie(t, resp)
	var adaProfile map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &adaProfile))

	resp = postJSON(t, app, "/api/auth/signup", signupPayload("Charles Babbage", "charles", "x", "male"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	charlesSession := sessionCookie(t, resp)
	var charlesProfile map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &charlesProfile))

	// Sidebar listing: ada sees charles, not herself.
	resp = getJSON(t, app, "/api/users", adaSession)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var contacts []map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &contacts))
	assert.Len(t, contacts, 1)
	assert.Equal(t, "charles", contacts[0]["username"])

	// Ada messages charles.
	charlesID := charlesProfile["id"].(string)
	resp = postJSON(t, app, "/api/messages/"+charlesID, map[string]string{"message": "How you doin?"}, adaSession)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var sent map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &sent))
	assert.Equal(t, "How you doin?", sent["message"])
	assert.Equal(t, adaProfile["id"], sent["senderId"])
	assert.Equal(t, charlesID, sent["receiverId"])

	// Both sides see the same conversation.
	resp = getJSON(t, app, "/api/messages/"+charlesID, adaSession)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var adaView []map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &adaView))
	assert.Len(t, adaView, 1)

	adaID := adaProfile["id"].(string)
	resp = getJSON(t, app, "/api/messages/"+adaID, charlesSession)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var charlesView []map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &charlesView))
	assert.Len(t, charlesView, 1)
	assert.Equal(t, "How you doin?", charlesView[0]["message"])

	// Messaging a nonexistent user fails without storing anything.
	resp = postJSON(t, app, "/api/messages/no-such-user", map[string]string{"message": "hello?"}, adaSession)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Empty message body is rejected.
	resp = postJSON(t, app, "/api/messages/"+charlesID, map[string]string{"message": ""}, adaSession)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignupThenLoginRoundTrip(t *testing.T) {
	app, _ := setupApp(t)

	resp := postJSON(t, app, "/api/auth/signup", signupPayload("Grace Hopper", "grace", "s3cret", "female"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/api/auth/login", map[string]string{"username": "grace", "password": "s3cret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The login session authenticates follow-up requests.
	session := sessionCookie(t, resp)
	resp = getJSON(t, app, "/api/auth/me", session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var profile map[string]interface{}
	assert.NoError(t, json.Unmarshal(readBody(t, resp), &profile))
	assert.Equal(t, "grace", profile["username"])
	assert.Equal(t, "Grace Hopper", profile["fullName"])
}
