package security

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-admin-pw")

	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if hash == "s3cret-admin-pw" {
		t.Fatal("hash must not equal the plaintext")
	}

	if err := CheckPassword(hash, "s3cret-admin-pw"); err != nil {
		t.Fatalf("CheckPassword rejected the original password: %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("CheckPassword accepted a wrong password")
	}
}
