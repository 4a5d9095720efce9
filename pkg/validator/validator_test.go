package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	Content string `json:"content" validate:"notblank,max=20"`
	Email   string `json:"recipient_email" validate:"omitempty,email"`
	Action  string `json:"action" validate:"required,oneof=accept reject"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Content: "Do you accept?",
		Email:   "bob@example.com",
		Action:  "accept",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		Content: "   ",
		Email:   "invalid",
		Action:  "maybe",
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors type, got %T", err)
	}
	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	fields := map[string]string{}
	for _, e := range vErrs {
		fields[e.Field] = e.Tag
	}
	if fields["content"] != "notblank" {
		t.Fatalf("expected content to fail notblank, got %q", fields["content"])
	}
	if fields["recipient_email"] != "email" {
		t.Fatalf("expected json field names, got %v", fields)
	}
	if fields["action"] != "oneof" {
		t.Fatalf("expected action to fail oneof, got %q", fields["action"])
	}
}

func TestRegisterValidation(t *testing.T) {
	type custom struct {
		Code string `validate:"isfoo"`
	}

	if err := RegisterValidation("isfoo", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "foo"
	}); err != nil {
		t.Fatalf("register validation: %v", err)
	}

	if err := ValidateStruct(custom{Code: "foo"}); err != nil {
		t.Fatalf("expected custom validation to pass: %v", err)
	}
	if err := ValidateStruct(custom{Code: "bar"}); err == nil {
		t.Fatal("expected custom validation to fail")
	}
}

func TestURLTokenRule(t *testing.T) {
	type tokenPayload struct {
		Token string `json:"token" validate:"required,urltoken"`
	}

	for _, token := range []string{"abcDEF123", "-leading-dash", "under_score"} {
		if err := ValidateStruct(tokenPayload{Token: token}); err != nil {
			t.Fatalf("expected %q to be accepted: %v", token, err)
		}
	}
	for _, token := range []string{"has space", "slash/inside", "plus+sign", "pad=="} {
		err := ValidateStruct(tokenPayload{Token: token})
		vErrs, ok := err.(ValidationErrors)
		if !ok || len(vErrs) != 1 || vErrs[0].Tag != "urltoken" {
			t.Fatalf("expected %q to fail urltoken, got %v", token, err)
		}
	}
}
