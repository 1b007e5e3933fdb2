package introspect

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// decodeJSON reads and decodes the request body as JSON into v.
func decodeJSON(req *http.Request, v interface{}) error {
	defer req.Body.Close()
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}

// result is a minimal stand-in for the teacher's server/result.Result: just
// enough structure (status code, JSON body, optional headers) to drive
// httpEndpoint below. The introspection server has no user-facing HTML to
// render, so it skips the teacher's internal-vs-external message split.
type result struct {
	status  int
	body    interface{}
	headers map[string]string
}

func ok(body interface{}) result {
	return result{status: http.StatusOK, body: body}
}

func errResult(status int, msg string) result {
	return result{status: status, body: errorBody{Error: msg, Status: status}}
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func (r result) withHeader(k, v string) result {
	if r.headers == nil {
		r.headers = map[string]string{}
	}
	r.headers[k] = v
	return r
}

func (r result) write(w http.ResponseWriter) {
	for k, v := range r.headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.status)
	if r.body == nil {
		return
	}
	enc := json.NewEncoder(w)
	_ = enc.Encode(r.body)
}
