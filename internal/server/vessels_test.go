package server

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestListVesselConfigs(testContext *testing.T) {
	router := newTestRouter(testContext)

	recorder := performJSON(testContext, router, http.MethodGet, "/api/vessels", "")
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d", recorder.Code)
	}

	var payload vesselsResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}

	expectedLabels := []string{"tiny", "small", "medium", "large"}
	if len(payload.SizeLabels) != len(expectedLabels) {
		testContext.Fatalf("expected size labels %v, got %v", expectedLabels, payload.SizeLabels)
	}
	for i, label := range expectedLabels {
		if payload.SizeLabels[i] != label {
			testContext.Fatalf("expected size labels %v, got %v", expectedLabels, payload.SizeLabels)
		}
	}

	var pipe *vesselConfigPayload
	for index := range payload.Vessels {
		if payload.Vessels[index].Vessel == "Pipe" {
			pipe = &payload.Vessels[index]
		}
	}
	if pipe == nil {
		testContext.Fatalf("expected Pipe in the vessel table, got %+v", payload.Vessels)
	}
	if pipe.Type != "size_category" || pipe.Unit != "bowl size" || pipe.Category != "Glass" {
		testContext.Fatalf("unexpected Pipe configuration: %+v", pipe)
	}
}
