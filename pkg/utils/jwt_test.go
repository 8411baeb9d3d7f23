package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mindgraph/backend/internal/models"
)

func TestGenerateAndValidateToken(t *testing.T) {
	ConfigureJWT("test-secret", 24)

	user := &models.User{
		Email: "user@test.com",
		Role:  models.UserRoleUser,
	}
	user.ID = uuid.New()

	token, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if claims.UserID != user.ID {
		t.Errorf("expected user id %s, got %s", user.ID, claims.UserID)
	}
	if claims.Email != user.Email {
		t.Errorf("expected email %s, got %s", user.Email, claims.Email)
	}
	if claims.Role != models.UserRoleUser {
		t.Errorf("expected role USER, got %s", claims.Role)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	ConfigureJWT("test-secret", 24)

	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	ConfigureJWT("first-secret", 24)

	user := &models.User{Email: "user@test.com", Role: models.UserRoleUser}
	user.ID = uuid.New()

	token, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	ConfigureJWT("second-secret", 24)
	if _, err := ValidateToken(token); err == nil {
		t.Error("expected error for token signed with a different secret")
	}
}
