package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trainlink/trainlink/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type wsFrame struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// readEvent reads frames until the wanted event arrives, skipping
// presence chatter that interleaves nondeterministically.
func readEvent(t *testing.T, conn *websocket.Conn, want string) wsFrame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if frame.Event == want {
			return frame
		}
	}
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

func TestRealtimeChat(t *testing.T) {
	app, db, cleanup := SetupTestApp(t)
	defer cleanup()

	register := func(name, email string) (id, token string) {
		body, _ := json.Marshal(map[string]string{
			"name":     name,
			"email":    email,
			"password": "secret-pass",
			"role":     "CLIENT",
		})
		req, _ := http.NewRequest("POST", "/v1/auth/register", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, 201, resp.StatusCode)

		var data map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&data)
		id = data["user"].(map[string]interface{})["id"].(string)
		token = data["tokens"].(map[string]interface{})["access_token"].(string)
		return id, token
	}

	aliceID, aliceToken := register("Alice", "alice@trainlink.io")
	brunoID, brunoToken := register("Bruno", "bruno@trainlink.io")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	defer app.Shutdown()
	base := "ws://" + ln.Addr().String()

	// A bad token never upgrades.
	_, _, err = websocket.DefaultDialer.Dial(base+"/v1/ws?token=garbage", nil)
	assert.Error(t, err)

	alice, _, err := websocket.DefaultDialer.Dial(base+"/v1/ws?token="+aliceToken, nil)
	require.NoError(t, err)
	defer alice.Close()
	readEvent(t, alice, "connection-established")

	bruno, _, err := websocket.DefaultDialer.Dial(base+"/v1/ws?token="+brunoToken, nil)
	require.NoError(t, err)
	defer bruno.Close()
	readEvent(t, bruno, "connection-established")

	// Alice sees Bruno come online.
	status := readEvent(t, alice, "user-status")
	assert.Equal(t, brunoID, status.Data["userId"])
	assert.Equal(t, "online", status.Data["status"])

	conversationID := domain.ConversationID(aliceID, brunoID)

	// Bruno has not joined the conversation: a send reaches him as a
	// notification, not as an in-room message.
	writeEvent(t, alice, "message:send", map[string]string{
		"receiverId": brunoID,
		"content":    "treino amanhã?",
	})
	notification := readEvent(t, bruno, "notification:new")
	assert.Equal(t, "Nova Mensagem", notification.Data["title"])
	assert.Equal(t, "message", notification.Data["type"])
	assert.Contains(t, notification.Data["message"], "Alice")

	// After joining the room Bruno receives the message itself.
	writeEvent(t, bruno, "conversation:join", map[string]string{
		"conversationId": conversationID,
	})
	writeEvent(t, alice, "conversation:join", map[string]string{
		"conversationId": conversationID,
	})
	// Joins are processed on each connection's own read loop; give them
	// a moment to land before asserting room delivery.
	time.Sleep(200 * time.Millisecond)

	writeEvent(t, alice, "message:send", map[string]string{
		"receiverId": brunoID,
		"content":    "às 9h",
	})
	msg := readEvent(t, bruno, "message:new")
	assert.Equal(t, "às 9h", msg.Data["content"])
	assert.Equal(t, aliceID, msg.Data["sender_id"])
	assert.Equal(t, conversationID, msg.Data["conversation_id"])

	// A malformed frame must not take the connection down.
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	writeEvent(t, bruno, "user:typing", map[string]string{
		"conversationId": conversationID,
	})
	typing := readEvent(t, alice, "user:typing")
	assert.Equal(t, brunoID, typing.Data["userId"])

	// Read receipts flow back over REST or socket; socket path here.
	writeEvent(t, bruno, "message:read", map[string]string{
		"conversationId": conversationID,
	})

	// A trainer with a live socket gets workout alerts. PT accounts need
	// admin validation before login; flip the flag directly.
	body, _ := json.Marshal(map[string]string{
		"name":     "Carla",
		"email":    "carla@trainlink.io",
		"password": "secret-pass",
		"role":     "PT",
	})
	req, _ := http.NewRequest("POST", "/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	var registered map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&registered)
	carlaID := registered["user"].(map[string]interface{})["id"].(string)

	_, err = db.Collection("users").UpdateOne(context.Background(),
		bson.M{"email": "carla@trainlink.io"},
		bson.M{"$set": bson.M{"validated": true}})
	require.NoError(t, err)

	body, _ = json.Marshal(map[string]string{
		"email":    "carla@trainlink.io",
		"password": "secret-pass",
	})
	req, _ = http.NewRequest("POST", "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var loggedIn map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&loggedIn)
	carlaToken := loggedIn["tokens"].(map[string]interface{})["access_token"].(string)

	carla, _, err := websocket.DefaultDialer.Dial(base+"/v1/ws?token="+carlaToken, nil)
	require.NoError(t, err)
	defer carla.Close()
	readEvent(t, carla, "connection-established")

	inserted, err := db.Collection("training_plans").InsertOne(context.Background(), bson.M{
		"client_id":   brunoID,
		"pt_id":       carlaID,
		"title":       "Treino A",
		"day_of_week": 2,
		"exercises":   bson.A{bson.M{"name": "Agachamento", "sets": 4, "reps": 10}},
		"completions": bson.A{},
		"created_at":  time.Now(),
		"updated_at":  time.Now(),
	})
	require.NoError(t, err)
	planID := inserted.InsertedID.(primitive.ObjectID).Hex()

	// The frame carries only the plan id; trainer and names come from
	// the plan document.
	writeEvent(t, bruno, "workout:completed", map[string]string{"planId": planID})

	completed := readEvent(t, carla, "workout:completed")
	assert.Equal(t, "Bruno", completed.Data["clientName"])
	assert.Equal(t, "Treino A", completed.Data["planName"])

	alert := readEvent(t, carla, "notification:new")
	assert.Equal(t, "Treino Concluído", alert.Data["title"])
	assert.Equal(t, "workout", alert.Data["type"])
	assert.Contains(t, alert.Data["message"], "Bruno")

	// Second login replaces the first connection: last one wins.
	bruno2, _, err := websocket.DefaultDialer.Dial(base+"/v1/ws?token="+brunoToken, nil)
	require.NoError(t, err)
	defer bruno2.Close()
	readEvent(t, bruno2, "connection-established")

	require.NoError(t, bruno.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := bruno.ReadMessage(); err != nil {
			break // replaced connection was closed by the server
		}
	}
}
