package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b' for key 'uq_users_email'"}
	if !isDuplicateKey(dup) {
		t.Fatalf("expected 1062 to be a duplicate key")
	}
	if !isDuplicateKey(fmt.Errorf("insert user: %w", dup)) {
		t.Fatalf("expected wrapped 1062 to be a duplicate key")
	}
	if isDuplicateKey(&mysql.MySQLError{Number: 1452}) {
		t.Fatalf("foreign key failure is not a duplicate key")
	}
	if isDuplicateKey(errors.New("Error 1062")) {
		t.Fatalf("untyped errors are not inspected")
	}
}
