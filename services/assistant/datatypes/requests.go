// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes: request/response bodies for the assistant API.
//
// Field names mirror the legacy assistant API (user_query,
// generated_query, model_response) so existing clients keep working.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxUtteranceBytes is the maximum size of a single user utterance.
	// Checked in bytes, not runes, to bound memory.
	MaxUtteranceBytes = 8 * 1024 // 8KB

	// MaxCommentBytes is the maximum size of a feedback comment.
	MaxCommentBytes = 4 * 1024 // 4KB
)

// requestValidate is the shared validator instance for API datatypes.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("maxbytes", validateMaxUtteranceBytes)
	_ = requestValidate.RegisterValidation("maxcommentbytes", validateMaxCommentBytes)
}

func validateMaxUtteranceBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxUtteranceBytes
}

func validateMaxCommentBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxCommentBytes
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	UserID    string `json:"user_id" validate:"required,min=1,max=128"`
	UserQuery string `json:"user_query" validate:"required,min=1,maxbytes"`
}

// Validate checks the request against its constraints.
func (r *QueryRequest) Validate() error {
	return requestValidate.Struct(r)
}

// QueryResponse is the body returned by POST /v1/query. The first three
// fields match the legacy API shape.
type QueryResponse struct {
	UserInput      string `json:"user_input"`
	GeneratedQuery string `json:"generated_sql_query,omitempty"`
	ModelResponse  string `json:"model_response"`
	Intent         Intent `json:"intent"`
	TurnID         string `json:"turn_id"`
	Persisted      bool   `json:"persisted"`
}

// FeedbackRequest is the body of POST /v1/feedback. Rating and comment
// are individually optional but at least one must be present; the
// handler enforces that.
type FeedbackRequest struct {
	UserID  string `json:"user_id" validate:"required,min=1,max=128"`
	TurnID  string `json:"turn_id" validate:"required,uuid4"`
	Rating  string `json:"feedback" validate:"omitempty,oneof=like dislike"`
	Comment string `json:"comments" validate:"omitempty,maxcommentbytes"`
}

// Validate checks the request against its constraints.
func (r *FeedbackRequest) Validate() error {
	return requestValidate.Struct(r)
}

// FeedbackResponse acknowledges a feedback submission.
type FeedbackResponse struct {
	FeedbackMessage string `json:"feedback_message,omitempty"`
	CommentMessage  string `json:"comment_message,omitempty"`
	Duplicate       bool   `json:"duplicate,omitempty"`
}
