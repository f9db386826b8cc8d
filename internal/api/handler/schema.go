package handler

import (
	"bytes"
	"encoding/json"
)

// errorBody documents the envelope rendered by the API error handler.
type errorBody struct {
	Error string `json:"error" example:"invitation expired"`
	Code  string `json:"code"  example:"INVITATION_EXPIRED"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// optionalString tells an absent JSON field apart from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}
