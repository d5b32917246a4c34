package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

const testSecret = "s3cret-for-tests"

func TestHMACValidator_Validate(t *testing.T) {
	v, err := NewHMACValidator(testSecret, "tutorhub", "", logger.Nop())
	if err != nil {
		t.Fatalf("NewHMACValidator() error = %v", err)
	}

	valid, _ := IssueHS256(testSecret, "tutorhub", "42", "tutor", time.Hour)
	expired, _ := IssueHS256(testSecret, "tutorhub", "42", "tutor", -time.Minute)
	wrongIssuer, _ := IssueHS256(testSecret, "someone-else", "42", "tutor", time.Hour)
	wrongSecret, _ := IssueHS256("other-secret", "tutorhub", "42", "tutor", time.Hour)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "42", "iss": "tutorhub", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"expired", expired, true},
		{"wrong issuer", wrongIssuer, true},
		{"wrong secret", wrongSecret, true},
		{"unsigned", noneAlg, true},
		{"garbage", "not.a.token", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Validate(context.Background(), tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if claims.Subject != "42" || len(claims.Roles) != 1 || claims.Roles[0] != "tutor" {
					t.Fatalf("claims = %+v", claims)
				}
			}
		})
	}
}

func TestNewHMACValidator_RequiresSecret(t *testing.T) {
	if _, err := NewHMACValidator("", "", "", nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIdentityFromClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  *Claims
		want    Identity
		wantErr bool
	}{
		{"student", &Claims{Subject: "7", Roles: []string{"student"}}, Identity{UserID: 7, Role: RoleStudent}, false},
		{"first known role wins", &Claims{Subject: "3", Roles: []string{"auditor", "admin"}}, Identity{UserID: 3, Role: RoleAdmin}, false},
		{"non numeric subject", &Claims{Subject: "abc", Roles: []string{"admin"}}, Identity{}, true},
		{"no role", &Claims{Subject: "3"}, Identity{}, true},
		{"nil claims", nil, Identity{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IdentityFromClaims(tt.claims)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentity) {
					t.Fatalf("error = %v, want ErrInvalidIdentity", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("IdentityFromClaims() = %+v, %v", got, err)
			}
		})
	}
}

func TestClaimsContext(t *testing.T) {
	if GetClaims(context.Background()) != nil {
		t.Fatal("expected nil claims")
	}
	c := &Claims{Subject: "1"}
	if GetClaims(WithClaims(context.Background(), c)) != c {
		t.Fatal("claims not round-tripped through context")
	}
}
