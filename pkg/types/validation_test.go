package types

import "testing"

func TestValidatePayload(t *testing.T) {
	if err := ValidatePayload(&ArrivalPayload{
		Token: "abc", StudentNumber: "123", LectureID: "42", UnixTimeMS: 1,
	}); err != nil {
		t.Fatalf("complete payload should validate: %v", err)
	}

	if err := ValidatePayload(&ArrivalPayload{StudentNumber: "123", LectureID: "42", UnixTimeMS: 1}); err == nil {
		t.Fatal("missing token must fail validation")
	}

	// Manual edits tolerate an empty student number; the handler answers
	// that case with its own outcome event.
	if err := ValidatePayload(&ManualEditPayload{LectureID: "42"}); err != nil {
		t.Fatalf("empty student number should pass validation: %v", err)
	}
	if err := ValidatePayload(&ManualEditPayload{StudentNumber: "123"}); err == nil {
		t.Fatal("missing lecture id must fail validation")
	}
}

func TestIsValidLectureID(t *testing.T) {
	valid := []string{"42", "lecture_1", "AB-12", "x"}
	for _, id := range valid {
		if !IsValidLectureID(id) {
			t.Fatalf("%q should be valid", id)
		}
	}

	invalid := []string{"", "has space", "semi;colon", "slash/id", string(make([]byte, 65))}
	for _, id := range invalid {
		if IsValidLectureID(id) {
			t.Fatalf("%q should be invalid", id)
		}
	}
}

func TestIsPrivilegedRole(t *testing.T) {
	for _, role := range []string{RoleTeacher, RoleAdmin, RoleCounselor} {
		if !IsPrivilegedRole(role) {
			t.Fatalf("%q should be privileged", role)
		}
	}
	for _, role := range []string{RoleStudent, "", "TEACHER", "root"} {
		if IsPrivilegedRole(role) {
			t.Fatalf("%q should not be privileged", role)
		}
	}
}
