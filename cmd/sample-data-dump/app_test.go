package main

import (
	"errors"
	"testing"

	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "settings", "env"); got != "settings" {
		t.Errorf("Expected settings, got %s", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("Expected empty string, got %s", got)
	}
}

func TestAppendTransfer(t *testing.T) {
	users := models.TableConfiguration{SchemaName: "public", TableName: "users"}
	posts := models.TableConfiguration{SchemaName: "public", TableName: "posts"}

	var batch models.BatchResult
	batch = appendTransfer(batch, users, 512, nil)
	batch = appendTransfer(batch, posts, 0, errors.New("NoSuchKey"))

	if len(batch.Tables) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(batch.Tables))
	}
	if batch.Tables[0].Status != models.StatusOK || batch.Tables[0].Size != 512 {
		t.Errorf("Unexpected result: %+v", batch.Tables[0])
	}
	if batch.Tables[1].Status != models.StatusFailed || batch.Tables[1].Message != "NoSuchKey" {
		t.Errorf("Unexpected result: %+v", batch.Tables[1])
	}

	err := failedTablesError(batch)
	if err == nil || err.Error() != "1 of 2 tables failed" {
		t.Errorf("Expected 1 of 2 tables failed, got %v", err)
	}
	if err := failedTablesError(models.BatchResult{}); err != nil {
		t.Errorf("Expected no error for an empty batch, got %v", err)
	}
}
