package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func performCSV(testContext *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	testContext.Helper()

	request := httptest.NewRequest(http.MethodPost, "/api/import/csv", strings.NewReader(body))
	request.Header.Set("Content-Type", "text/csv")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestImportCSVMapsInputErrorsToStableCodes(testContext *testing.T) {
	router := newTestRouter(testContext)

	testCases := []struct {
		name      string
		body      string
		wantError string
	}{
		{
			name:      "empty-input",
			body:      "",
			wantError: "empty_input",
		},
		{
			name:      "missing-column",
			body:      "Instance ID,Timestamp,Location,Strain,Quantity\nrow-1,2024-01-15 20:30,Home,Gelato,1\n",
			wantError: "missing_column",
		},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			recorder := performCSV(testContext, router, testCase.body)
			if recorder.Code != http.StatusBadRequest {
				testContext.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
			}
			var payload map[string]any
			if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
				testContext.Fatalf("failed to decode response: %v", err)
			}
			if payload["error"] != testCase.wantError {
				testContext.Fatalf("expected error %q, got %v", testCase.wantError, payload["error"])
			}
		})
	}
}

func TestImportCSVCreatesSessions(testContext *testing.T) {
	router := newTestRouter(testContext)

	body := "Instance ID,Timestamp,Location,Vessel,Strain,Quantity\n" +
		"row-1,2024-01-15 20:30,Dolores Park,Joint,Gelato,0.5\n"
	recorder := performCSV(testContext, router, body)
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var result struct {
		Success  bool `json:"success"`
		Imported int  `json:"imported"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success || result.Imported != 1 {
		testContext.Fatalf("unexpected import result: %+v", result)
	}

	listRecorder := performJSON(testContext, router, http.MethodGet, "/api/sessions", "")
	var records []map[string]any
	if err := json.Unmarshal(listRecorder.Body.Bytes(), &records); err != nil {
		testContext.Fatalf("failed to decode list response: %v", err)
	}
	if len(records) != 1 {
		testContext.Fatalf("expected the imported session listed, got %d", len(records))
	}
}
