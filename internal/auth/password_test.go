package auth

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func testPassword_HashVerify_Roundtrip(t *rapid.T) {
	var hasher PasswordHasher = FakeInsecureHasher{}
	password := rapid.StringN(MinPasswordLength, 100, 200).Draw(t, "password")

	hash, err := hasher.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !hasher.VerifyPassword(password, hash) {
		t.Fatalf("VerifyPassword failed for password %q", password)
	}
}

func TestPassword_HashVerify_Roundtrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testPassword_HashVerify_Roundtrip)
}

func FuzzPassword_HashVerify_Roundtrip(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testPassword_HashVerify_Roundtrip))
}

func testPassword_WrongPassword_FailsVerify(t *rapid.T) {
	var hasher PasswordHasher = FakeInsecureHasher{}
	password1 := rapid.StringN(MinPasswordLength, 50, 100).Draw(t, "password1")
	password2 := rapid.StringN(MinPasswordLength, 50, 100).Filter(func(s string) bool {
		return s != password1
	}).Draw(t, "password2")

	hash, err := hasher.HashPassword(password1)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hasher.VerifyPassword(password2, hash) {
		t.Fatalf("VerifyPassword should fail for wrong password")
	}
}

func TestPassword_WrongPassword_FailsVerify(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testPassword_WrongPassword_FailsVerify)
}

func FuzzPassword_WrongPassword_FailsVerify(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testPassword_WrongPassword_FailsVerify))
}

// Argon2 is slow, so these run once rather than under rapid.
func TestPassword_Argon2_Roundtrip(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$") {
		t.Fatalf("unexpected hash encoding: %q", hash)
	}
	if !VerifyPassword("correct horse battery", hash) {
		t.Fatal("VerifyPassword rejected the correct password")
	}
	if VerifyPassword("correct horse battery!", hash) {
		t.Fatal("VerifyPassword accepted a wrong password")
	}
}

func TestPassword_Argon2_NonDeterministic(t *testing.T) {
	t.Parallel()
	hash1, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("first HashPassword failed: %v", err)
	}
	hash2, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("second HashPassword failed: %v", err)
	}
	if hash1 == hash2 {
		t.Fatalf("hashing is deterministic - salt is not random")
	}
}

func TestPassword_VerifyRejectsMalformedHashes(t *testing.T) {
	t.Parallel()
	for _, encoded := range []string{
		"",
		"$fake$password",
		"$argon2i$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$",
	} {
		if VerifyPassword("password", encoded) {
			t.Fatalf("VerifyPassword accepted malformed hash %q", encoded)
		}
	}
}

func testPassword_Validation(t *rapid.T) {
	password := string(rapid.SliceOfN(rapid.Byte(), 0, 100).Draw(t, "password"))
	err := ValidatePasswordStrength(password)
	if len(password) < MinPasswordLength && err == nil {
		t.Fatalf("short password (len=%d) should fail validation", len(password))
	}
	if len(password) >= MinPasswordLength && err != nil {
		t.Fatalf("password (len=%d) should pass validation: %v", len(password), err)
	}
}

func TestPassword_Validation(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testPassword_Validation)
}

func FuzzPassword_Validation(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testPassword_Validation))
}
