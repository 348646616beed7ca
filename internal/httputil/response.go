package httputil

import "encoding/json"
import "net/http"

// Envelope is the uniform response wrapper every endpoint returns,
// success and failure alike. Data is null on errors; Success mirrors
// whether StatusCode is below 400.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteData(w http.ResponseWriter, status int, data any, message string) {
	WriteJSON(w, status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < 400,
	})
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{
		StatusCode: status,
		Message:    message,
		Success:    false,
	})
}
