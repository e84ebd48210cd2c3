package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGoldenPath(t *testing.T) {
	app, db, cleanup := SetupTestApp(t)
	defer cleanup()

	// Helper for requests
	request := func(method, path, token string, body interface{}) *http.Response {
		var bodyReader io.Reader
		if body != nil {
			jsonBytes, _ := json.Marshal(body)
			bodyReader = bytes.NewReader(jsonBytes)
		}
		req, _ := http.NewRequest(method, path, bodyReader)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}
	decode := func(resp *http.Response) map[string]interface{} {
		var data map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&data)
		return data
	}

	// ==========================================
	// STEP 1: Seed Admin & Login
	// ==========================================
	// Admin accounts are bootstrapped, never registered through the API.
	hashed, _ := bcrypt.GenerateFromPassword([]byte("admin-secret"), bcrypt.DefaultCost)
	_, err := db.Collection("users").InsertOne(context.Background(), map[string]interface{}{
		"name":      "Root Admin",
		"email":     "admin@trainlink.io",
		"password":  string(hashed),
		"role":      "ADMIN",
		"validated": true,
	})
	require.NoError(t, err)

	resp := request("POST", "/v1/auth/login", "", map[string]string{
		"email":    "admin@trainlink.io",
		"password": "admin-secret",
	})
	require.Equal(t, 200, resp.StatusCode)
	loginData := decode(resp)
	adminToken := loginData["tokens"].(map[string]interface{})["access_token"].(string)
	require.NotEmpty(t, adminToken)
	fmt.Println("✓ Admin Logged In")

	// ==========================================
	// STEP 2: PT Registers, Cannot Login Until Validated
	// ==========================================
	resp = request("POST", "/v1/auth/register", "", map[string]string{
		"name":     "Coach Rui",
		"email":    "rui@trainlink.io",
		"password": "coach-secret",
		"role":     "PT",
	})
	require.Equal(t, 201, resp.StatusCode)
	registerData := decode(resp)
	ptID := registerData["user"].(map[string]interface{})["id"].(string)
	assert.Nil(t, registerData["tokens"], "unvalidated PT must not receive tokens")

	resp = request("POST", "/v1/auth/login", "", map[string]string{
		"email":    "rui@trainlink.io",
		"password": "coach-secret",
	})
	assert.Equal(t, 403, resp.StatusCode, "unvalidated PT login must be refused")
	fmt.Println("✓ Unvalidated PT Blocked")

	// ==========================================
	// STEP 3: Admin Validates PT
	// ==========================================
	resp = request("GET", "/v1/admin/pts/pending", adminToken, nil)
	require.Equal(t, 200, resp.StatusCode)
	var pending []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&pending)
	require.Len(t, pending, 1)
	assert.Equal(t, ptID, pending[0]["id"])

	resp = request("POST", "/v1/admin/pts/"+ptID+"/validate", adminToken, nil)
	require.Equal(t, 200, resp.StatusCode)

	resp = request("POST", "/v1/auth/login", "", map[string]string{
		"email":    "rui@trainlink.io",
		"password": "coach-secret",
	})
	require.Equal(t, 200, resp.StatusCode)
	ptToken := decode(resp)["tokens"].(map[string]interface{})["access_token"].(string)
	fmt.Println("✓ PT Validated & Logged In")

	// ==========================================
	// STEP 4: PT Creates a Client
	// ==========================================
	resp = request("POST", "/v1/pt/clients", ptToken, map[string]string{
		"name":     "Marta",
		"email":    "marta@trainlink.io",
		"password": "client-secret",
	})
	require.Equal(t, 201, resp.StatusCode)
	clientData := decode(resp)
	clientID := clientData["id"].(string)

	resp = request("POST", "/v1/auth/login", "", map[string]string{
		"email":    "marta@trainlink.io",
		"password": "client-secret",
	})
	require.Equal(t, 200, resp.StatusCode)
	clientToken := decode(resp)["tokens"].(map[string]interface{})["access_token"].(string)
	fmt.Println("✓ Client Created & Logged In")

	// ==========================================
	// STEP 5: PT Creates a Weekly Plan
	// ==========================================
	resp = request("POST", "/v1/pt/plans", ptToken, map[string]interface{}{
		"client_id":   clientID,
		"title":       "Leg Day",
		"day_of_week": 1,
		"exercises": []map[string]interface{}{
			{"name": "Squat", "sets": 4, "reps": 8},
			{"name": "Lunge", "sets": 3, "reps": 12},
		},
	})
	require.Equal(t, 201, resp.StatusCode)
	planID := decode(resp)["id"].(string)
	fmt.Println("✓ Plan Created:", planID)

	// Plan with an out-of-range day is rejected.
	resp = request("POST", "/v1/pt/plans", ptToken, map[string]interface{}{
		"client_id":   clientID,
		"title":       "Bad Day",
		"day_of_week": 7,
	})
	assert.Equal(t, 400, resp.StatusCode)

	// ==========================================
	// STEP 6: Client Completes the Plan (multipart)
	// ==========================================
	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	writer.WriteField("status", "completed")
	writer.WriteField("feedback", "felt strong")
	writer.Close()

	req, _ := http.NewRequest("POST", "/v1/client/plans/"+planID+"/complete", &form)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+clientToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	fmt.Println("✓ Plan Completed")

	// Invalid status is rejected.
	var badForm bytes.Buffer
	badWriter := multipart.NewWriter(&badForm)
	badWriter.WriteField("status", "done")
	badWriter.Close()
	req, _ = http.NewRequest("POST", "/v1/client/plans/"+planID+"/complete", &badForm)
	req.Header.Set("Content-Type", badWriter.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+clientToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	// ==========================================
	// STEP 7: Dashboards Reflect the Completion
	// ==========================================
	resp = request("GET", "/v1/client/dashboard", clientToken, nil)
	require.Equal(t, 200, resp.StatusCode)
	dashboard := decode(resp)
	stats := dashboard["stats"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["this_week"].(map[string]interface{})["completed"])
	assert.EqualValues(t, 1, stats["this_month"].(map[string]interface{})["completed"])

	resp = request("GET", "/v1/pt/dashboard", ptToken, nil)
	require.Equal(t, 200, resp.StatusCode)
	dashboard = decode(resp)
	topClients := dashboard["top_clients"].([]interface{})
	require.NotEmpty(t, topClients)
	assert.Equal(t, clientID, topClients[0].(map[string]interface{})["user_id"])
	fmt.Println("✓ Dashboards Verified")

	// ==========================================
	// STEP 8: Client History & Completion Rate
	// ==========================================
	resp = request("GET", "/v1/pt/clients/"+clientID+"/history", ptToken, nil)
	require.Equal(t, 200, resp.StatusCode)
	history := decode(resp)
	assert.EqualValues(t, 100, history["completion_rate"])

	// ==========================================
	// STEP 9: PT-Change Request Flow
	// ==========================================
	resp = request("POST", "/v1/auth/register", "", map[string]string{
		"name":     "Coach Ana",
		"email":    "ana@trainlink.io",
		"password": "coach-secret",
		"role":     "PT",
	})
	require.Equal(t, 201, resp.StatusCode)
	pt2ID := decode(resp)["user"].(map[string]interface{})["id"].(string)

	resp = request("POST", "/v1/admin/pts/"+pt2ID+"/validate", adminToken, nil)
	require.Equal(t, 200, resp.StatusCode)

	resp = request("POST", "/v1/client/pt-change", clientToken, map[string]string{
		"to_pt_id": pt2ID,
		"reason":   "schedule conflict",
	})
	require.Equal(t, 201, resp.StatusCode)
	requestID := decode(resp)["id"].(string)

	// A second pending request is refused.
	resp = request("POST", "/v1/client/pt-change", clientToken, map[string]string{
		"to_pt_id": pt2ID,
	})
	assert.Equal(t, 409, resp.StatusCode)

	resp = request("POST", "/v1/admin/requests/pt-changes/"+clientID+"/"+requestID+"/approve", adminToken, nil)
	require.Equal(t, 200, resp.StatusCode)

	// Approving again conflicts: the request is terminal.
	resp = request("POST", "/v1/admin/requests/pt-changes/"+clientID+"/"+requestID+"/approve", adminToken, nil)
	assert.Equal(t, 409, resp.StatusCode)

	// Counters shifted: old PT back to 0, new PT at 1.
	var ptDoc map[string]interface{}
	err = db.Collection("users").FindOne(context.Background(), map[string]interface{}{
		"email": "rui@trainlink.io",
	}).Decode(&ptDoc)
	require.NoError(t, err)
	assert.EqualValues(t, 0, ptDoc["client_count"])

	err = db.Collection("users").FindOne(context.Background(), map[string]interface{}{
		"email": "ana@trainlink.io",
	}).Decode(&ptDoc)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ptDoc["client_count"])
	fmt.Println("✓ PT Change Approved, Counters Shifted")

	// Old PT can no longer read the client's plans.
	resp = request("GET", "/v1/pt/clients/"+clientID+"/plans", ptToken, nil)
	assert.Equal(t, 403, resp.StatusCode)

	// ==========================================
	// STEP 10: Chat Over REST
	// ==========================================
	resp = request("POST", "/v1/auth/login", "", map[string]string{
		"email":    "ana@trainlink.io",
		"password": "coach-secret",
	})
	require.Equal(t, 200, resp.StatusCode)
	pt2Token := decode(resp)["tokens"].(map[string]interface{})["access_token"].(string)

	resp = request("POST", "/v1/chat/messages", clientToken, map[string]string{
		"receiver_id": pt2ID,
		"content":     "Olá coach!",
	})
	require.Equal(t, 201, resp.StatusCode)
	msgData := decode(resp)
	conversationID := msgData["conversation_id"].(string)
	require.NotEmpty(t, conversationID)

	resp = request("GET", "/v1/chat/conversations", pt2Token, nil)
	require.Equal(t, 200, resp.StatusCode)
	var summaries []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&summaries)
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 1, summaries[0]["unread_count"])
	assert.Equal(t, "Marta", summaries[0]["peer_name"])

	resp = request("POST", "/v1/chat/conversations/"+conversationID+"/read", pt2Token, nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.EqualValues(t, 1, decode(resp)["updated"])

	resp = request("GET", "/v1/chat/conversations", pt2Token, nil)
	require.Equal(t, 200, resp.StatusCode)
	summaries = nil
	json.NewDecoder(resp.Body).Decode(&summaries)
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 0, summaries[0]["unread_count"])
	fmt.Println("✓ Chat Flow Verified")

	// A stranger cannot mark the conversation read.
	resp = request("POST", "/v1/chat/conversations/"+conversationID+"/read", ptToken, nil)
	assert.Equal(t, 403, resp.StatusCode)

	// ==========================================
	// STEP 11: Token Refresh Rotation
	// ==========================================
	resp = request("POST", "/v1/auth/login", "", map[string]string{
		"email":    "marta@trainlink.io",
		"password": "client-secret",
	})
	require.Equal(t, 200, resp.StatusCode)
	tokens := decode(resp)["tokens"].(map[string]interface{})
	refreshToken := tokens["refresh_token"].(string)

	resp = request("POST", "/v1/auth/refresh", "", map[string]string{
		"refresh_token": refreshToken,
	})
	require.Equal(t, 200, resp.StatusCode)

	// Rotated: the old refresh token is single-use.
	resp = request("POST", "/v1/auth/refresh", "", map[string]string{
		"refresh_token": refreshToken,
	})
	assert.Equal(t, 401, resp.StatusCode)
	fmt.Println("✓ Refresh Token Rotation Verified")
}
