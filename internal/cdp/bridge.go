package cdp

import (
	"encoding/json"
	"fmt"

	"github.com/dgnsrekt/avsync/internal/types"
)

const (
	// BindingName is the page binding the content script calls to reach the
	// coordinator.
	BindingName = "avsyncSend"
	// MessageSource tags window messages posted by the coordinator.
	MessageSource = "avsync-coordinator"
)

// jsPostMessage delivers msg to the content script as a window message.
func jsPostMessage(msg types.Message) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`window.postMessage({source: %q, payload: %s}, "*")`, MessageSource, payload), nil
}

// jsRequest asks the content script to handle msg and resolves to a JSON
// string wrapping its answer. A missing content script or an empty answer
// resolves to {"ok":false}.
func jsRequest(msg types.Message) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(async () => {
  const cs = window.__avsyncContentScript;
  if (!cs || typeof cs.handle !== "function") return JSON.stringify({ok: false});
  const r = await cs.handle(%s);
  if (r === undefined || r === null) return JSON.stringify({ok: false});
  return JSON.stringify({ok: true, value: r});
})()`, payload), nil
}

type requestResult struct {
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value"`
}

// decodeRequestResult unwraps a jsRequest result. A nil reply means the
// content script did not answer.
func decodeRequestResult(s string) (json.RawMessage, error) {
	var res requestResult
	if err := json.Unmarshal([]byte(s), &res); err != nil {
		return nil, fmt.Errorf("decode content script reply: %w", err)
	}
	if !res.OK {
		return nil, nil
	}
	return res.Value, nil
}

// bindingCall is what the content script passes to the page binding. ID is
// zero for messages that expect no reply.
type bindingCall struct {
	ID      int64         `json:"id"`
	Message types.Message `json:"message"`
}

func decodeBindingCall(payload string) (bindingCall, error) {
	var call bindingCall
	if err := json.Unmarshal([]byte(payload), &call); err != nil {
		return bindingCall{}, fmt.Errorf("decode binding payload: %w", err)
	}
	if call.Message.Message == "" {
		return bindingCall{}, fmt.Errorf("decode binding payload: missing message kind")
	}
	return call, nil
}

type bindingReply struct {
	Response any    `json:"response"`
	Error    string `json:"error,omitempty"`
}

// jsReply resolves the content script's pending call id.
func jsReply(id int64, response any, callErr error) (string, error) {
	reply := bindingReply{Response: response}
	if callErr != nil {
		reply.Error = callErr.Error()
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`window.__avsyncReply && window.__avsyncReply(%d, %s)`, id, payload), nil
}
