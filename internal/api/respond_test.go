package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/chatrelay/internal/relay"
	"github.com/koopa0/chatrelay/internal/store"
	"github.com/koopa0/chatrelay/internal/testutil"
)

func postRespond(t *testing.T, url, threadID, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url+"/api/v1/threads/"+threadID+"/respond", "application/json",
		strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestRespondStreamsSSE(t *testing.T) {
	driver := &testutil.ScriptedDriver{Events: []*relay.Event{
		testutil.Added("msg_0"),
		testutil.Updated("msg_0", "Hi "),
		testutil.Updated("msg_0", "there"),
		testutil.Done("msg_0", "Hi there"),
	}}
	ts, _ := newTestServer(t, driver)

	resp, body := postRespond(t, ts.URL, "thread_sse", `{"text":"Hello!"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := testutil.ParseSSEEvents(t, body)
	require.Len(t, events, 4)

	added := testutil.FindEvent(events, "thread.item.added")
	require.NotNil(t, added)
	var addedItem store.Item
	require.NoError(t, json.Unmarshal([]byte(added.Data), &addedItem))
	assert.NotEqual(t, "msg_0", addedItem.ID, "upstream id must not leak to the client")

	updates := testutil.FindAllEvents(events, "thread.item.updated")
	require.Len(t, updates, 2)
	var text string
	for _, u := range updates {
		var payload struct {
			ItemID string `json:"item_id"`
			Delta  string `json:"delta"`
		}
		require.NoError(t, json.Unmarshal([]byte(u.Data), &payload))
		assert.Equal(t, addedItem.ID, payload.ItemID)
		text += payload.Delta
	}
	assert.Equal(t, "Hi there", text)

	done := testutil.FindEvent(events, "thread.item.done")
	require.NotNil(t, done)
	var doneItem store.Item
	require.NoError(t, json.Unmarshal([]byte(done.Data), &doneItem))
	assert.Equal(t, addedItem.ID, doneItem.ID)
	assert.Equal(t, "Hi there", doneItem.Text())
}

func TestRespondPersistsTurn(t *testing.T) {
	ts, st := newTestServer(t, nil)

	resp, _ := postRespond(t, ts.URL, "thread_persist", `{"text":"Hello!"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page, err := st.LoadThreadItems(t.Context(), "thread_persist", "", 10, store.OrderAsc)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, store.RoleUser, page.Data[0].Role)
	assert.Equal(t, store.RoleAssistant, page.Data[1].Role)
	assert.Equal(t, "ok", page.Data[1].Text())
}

func TestRespondDistinctIDsAcrossTurns(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	_, body1 := postRespond(t, ts.URL, "thread_dup", `{"text":"one"}`)
	_, body2 := postRespond(t, ts.URL, "thread_dup", `{"text":"two"}`)

	var item1, item2 store.Item
	done1 := testutil.FindEvent(testutil.ParseSSEEvents(t, body1), "thread.item.done")
	done2 := testutil.FindEvent(testutil.ParseSSEEvents(t, body2), "thread.item.done")
	require.NotNil(t, done1)
	require.NotNil(t, done2)
	require.NoError(t, json.Unmarshal([]byte(done1.Data), &item1))
	require.NoError(t, json.Unmarshal([]byte(done2.Data), &item2))

	assert.NotEqual(t, item1.ID, item2.ID)
}

func TestRespondInvalidBody(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := postRespond(t, ts.URL, "thread_bad", `{broken`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postRespond(t, ts.URL, "thread_bad", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// failingDriver errors before emitting anything.
type failingDriver struct{}

func (failingDriver) Stream(context.Context, []relay.HistoryEntry, relay.EmitFunc) error {
	return errors.New("model unavailable")
}

func TestRespondFailureBeforeStreaming(t *testing.T) {
	ts, _ := newTestServer(t, failingDriver{})

	resp, body := postRespond(t, ts.URL, "thread_fail", `{"text":"Hello!"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "completion_failed")
}

func TestRespondFailureMidStream(t *testing.T) {
	driver := &testutil.ScriptedDriver{
		Events: []*relay.Event{
			testutil.Added("msg_0"),
			testutil.Updated("msg_0", "partial"),
		},
		Err: errors.New("connection reset"),
	}
	ts, _ := newTestServer(t, driver)

	resp, body := postRespond(t, ts.URL, "thread_mid", `{"text":"Hello!"}`)
	// SSE headers were already committed when the failure hit.
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := testutil.ParseSSEEvents(t, body)
	errEvent := testutil.FindEvent(events, "error")
	require.NotNil(t, errEvent)
	assert.Contains(t, errEvent.Data, "completion_failed")
	assert.Nil(t, testutil.FindEvent(events, "thread.item.done"))
}
