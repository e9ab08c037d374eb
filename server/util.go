package server

import (
	"net/http"

	"github.com/goccy/go-json"
)

func createResponse(success bool, data interface{}, errorMsg string) ResponseModel {
	return ResponseModel{
		Success: success,
		Data:    data,
		Error:   errorMsg,
	}
}

func SendResponse(w http.ResponseWriter, success bool, data interface{}, errorMsg string) {
	SendResponseWithStatus(w, success, data, errorMsg, 0)
}

// SendResponseWithStatus writes the envelope. A zero statusCode means 200 on
// success and 400 otherwise.
func SendResponseWithStatus(w http.ResponseWriter, success bool, data interface{}, errorMsg string, statusCode int) {
	response := createResponse(success, data, errorMsg)
	body, err := json.Marshal(response)
	if err != nil {
		http.Error(w, `{"success":false,"error":"Internal Server Error"}`, http.StatusInternalServerError)
		return
	}

	if statusCode == 0 {
		statusCode = http.StatusOK
		if !success {
			statusCode = http.StatusBadRequest
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
}
