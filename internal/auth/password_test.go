package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHashers(t *testing.T) map[string]*Hasher {
	t.Helper()

	bcryptCfg := DefaultHasherConfig()
	bcryptCfg.BcryptCost = bcrypt.MinCost
	bh, err := NewHasher(bcryptCfg)
	require.NoError(t, err)

	argonCfg := DefaultHasherConfig()
	argonCfg.Scheme = SchemeArgon2id
	argonCfg.Argon2Memory = 1024
	argonCfg.Argon2Threads = 1
	ah, err := NewHasher(argonCfg)
	require.NoError(t, err)

	return map[string]*Hasher{"bcrypt": bh, "argon2id": ah}
}

func TestHasher_RoundTrip(t *testing.T) {
	for name, h := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			for _, pwd := range []string{"pw1", "correct horse battery staple", "ünïcødé-✓"} {
				digest, err := h.Hash(pwd)
				require.NoError(t, err)
				assert.NotContains(t, digest, pwd)

				ok, err := h.Verify(pwd, digest)
				require.NoError(t, err)
				assert.True(t, ok, "password %q should verify", pwd)
			}
		})
	}
}

func TestHasher_Mismatch(t *testing.T) {
	for name, h := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			digest, err := h.Hash("pw1")
			require.NoError(t, err)

			ok, err := h.Verify("pw2", digest)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = h.Verify("", digest)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestHasher_Salted(t *testing.T) {
	for name, h := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			d1, err := h.Hash("pw1")
			require.NoError(t, err)
			d2, err := h.Hash("pw1")
			require.NoError(t, err)

			assert.NotEqual(t, d1, d2)
			for _, d := range []string{d1, d2} {
				ok, err := h.Verify("pw1", d)
				require.NoError(t, err)
				assert.True(t, ok)
			}
		})
	}
}

func TestHasher_SelfDescribing(t *testing.T) {
	hashers := testHashers(t)

	bDigest, err := hashers["bcrypt"].Hash("pw1")
	require.NoError(t, err)
	aDigest, err := hashers["argon2id"].Hash("pw1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(bDigest, "$2a$04$"))
	assert.True(t, strings.HasPrefix(aDigest, "$argon2id$v=19$m=1024,t=1,p=1$"))

	// Either hasher verifies either digest from the parameters it embeds.
	ok, err := hashers["bcrypt"].Verify("pw1", aDigest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hashers["argon2id"].Verify("pw1", bDigest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_HashRejectsMalformedInput(t *testing.T) {
	hashers := testHashers(t)

	tests := map[string]struct {
		hasher *Hasher
		input  string
	}{
		"bcrypt empty":      {hashers["bcrypt"], ""},
		"bcrypt too long":   {hashers["bcrypt"], strings.Repeat("a", 73)},
		"argon2id empty":    {hashers["argon2id"], ""},
		"argon2id too long": {hashers["argon2id"], strings.Repeat("a", 513)},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tc.hasher.Hash(tc.input)
			assert.ErrorIs(t, err, ErrEncoding)
		})
	}

	_, err := hashers["bcrypt"].Hash(strings.Repeat("a", 72))
	assert.NoError(t, err)
}

func TestHasher_VerifyRejectsUnknownDigests(t *testing.T) {
	h := testHashers(t)["bcrypt"]

	digests := map[string]string{
		"empty":                     "",
		"plaintext":                 "pw1",
		"unknown scheme":            "$md5$abc",
		"truncated bcrypt":          "$2a$10$short",
		"argon2i variant":           "$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"argon2id bad version":      "$argon2id$v=18$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"argon2id non-numeric":      "$argon2id$v=19$m=abc,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"argon2id zero params":      "$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"argon2id non-base64 salt":  "$argon2id$v=19$m=1024,t=1,p=1$???$a2V5",
		"argon2id non-base64 key":   "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$???",
		"argon2id missing sections": "$argon2id$v=19$m=1024,t=1,p=1",
	}

	for name, digest := range digests {
		t.Run(name, func(t *testing.T) {
			ok, err := h.Verify("pw1", digest)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrEncoding)
		})
	}
}

func TestHasher_NeedsRehash(t *testing.T) {
	hashers := testHashers(t)

	weak, err := hashers["bcrypt"].Hash("pw1")
	require.NoError(t, err)
	assert.False(t, hashers["bcrypt"].NeedsRehash(weak))

	strongerCfg := DefaultHasherConfig()
	strongerCfg.BcryptCost = bcrypt.MinCost + 1
	stronger, err := NewHasher(strongerCfg)
	require.NoError(t, err)
	assert.True(t, stronger.NeedsRehash(weak))

	// Switching scheme upgrades every digest of the old scheme.
	assert.True(t, hashers["argon2id"].NeedsRehash(weak))

	argonDigest, err := hashers["argon2id"].Hash("pw1")
	require.NoError(t, err)
	assert.False(t, hashers["argon2id"].NeedsRehash(argonDigest))
	assert.True(t, hashers["bcrypt"].NeedsRehash(argonDigest))

	assert.True(t, hashers["bcrypt"].NeedsRehash("garbage"))
}

func TestNewHasher_InvalidConfig(t *testing.T) {
	tests := map[string]HasherConfig{
		"unknown scheme":     {Scheme: "md5"},
		"bcrypt cost low":    {Scheme: SchemeBcrypt, BcryptCost: 3},
		"bcrypt cost high":   {Scheme: SchemeBcrypt, BcryptCost: 32},
		"argon2id zero time": {Scheme: SchemeArgon2id, Argon2Memory: 1024, Argon2Threads: 1},
	}

	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewHasher(cfg)
			assert.Error(t, err)
		})
	}
}
