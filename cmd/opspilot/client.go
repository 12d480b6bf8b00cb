// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AleutianAI/OpsPilot/cmd/opspilot/config"
	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
)

var httpClient = &http.Client{Timeout: 120 * time.Second}

func serviceURL(path string) string {
	base := config.Global.CLI.ServiceURL
	if base == "" {
		base = "http://localhost:12220"
	}
	return base + path
}

func postJSON(path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(serviceURL(path), "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not reach the assistant service (is it running? try 'opspilot serve'): %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return json.Unmarshal(data, out)
}

func sendQuery(question string) (*datatypes.QueryResponse, error) {
	req := datatypes.QueryRequest{
		UserID:    config.Global.CLI.UserID,
		UserQuery: question,
	}
	var resp datatypes.QueryResponse
	if err := postJSON("/v1/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func sendFeedback(turnID, rating, comment string) (*datatypes.FeedbackResponse, error) {
	req := datatypes.FeedbackRequest{
		UserID:  config.Global.CLI.UserID,
		TurnID:  turnID,
		Rating:  rating,
		Comment: comment,
	}
	var resp datatypes.FeedbackResponse
	if err := postJSON("/v1/feedback", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
