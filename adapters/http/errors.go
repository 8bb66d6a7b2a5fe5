package authhttp

import (
	"encoding/json"
	"net/http"

	"github.com/PaulFidika/walletauth/adapters/wire"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendMessage writes the {"message": "..."} error shape used by every endpoint.
func sendMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	sendMessage(w, http.StatusBadRequest, msg)
}

func tooMany(w http.ResponseWriter) {
	sendMessage(w, http.StatusTooManyRequests, wire.MsgTooManyRequests)
}
