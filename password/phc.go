package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errMalformedHash = errors.New("malformed password hash")

// phcHash is a decoded PHC string: $<id>$v=<version>$<k=v,...>$<salt>$<sum>.
type phcHash struct {
	id      string
	version int
	params  map[string]string
	salt    []byte
	sum     []byte
}

// scheme names the algorithm that produced encoded, or "" when unknown.
func scheme(encoded string) string {
	if isBcryptHash(encoded) {
		return bcryptScheme
	}
	rest, ok := strings.CutPrefix(encoded, "$")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "$")
	return id
}

func decodePHC(encoded string) (phcHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return phcHash{}, errMalformedHash
	}

	h := phcHash{id: fields[1], params: make(map[string]string, 3)}

	v, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return phcHash{}, fmt.Errorf("%w: missing version", errMalformedHash)
	}
	var err error
	if h.version, err = strconv.Atoi(v); err != nil {
		return phcHash{}, fmt.Errorf("%w: version %q", errMalformedHash, v)
	}

	for _, kv := range strings.Split(fields[3], ",") {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return phcHash{}, fmt.Errorf("%w: parameter %q", errMalformedHash, kv)
		}
		if _, dup := h.params[k]; dup {
			return phcHash{}, fmt.Errorf("%w: duplicate parameter %q", errMalformedHash, k)
		}
		h.params[k] = val
	}

	if h.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil {
		return phcHash{}, fmt.Errorf("%w: salt", errMalformedHash)
	}
	if h.sum, err = base64.StdEncoding.DecodeString(fields[5]); err != nil || len(h.sum) == 0 {
		return phcHash{}, fmt.Errorf("%w: sum", errMalformedHash)
	}
	return h, nil
}

// uint reads a numeric parameter of the given bit size that must be >= min.
func (h phcHash) uint(name string, bits int, min uint64) (uint64, error) {
	raw, ok := h.params[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", errMalformedHash, name)
	}
	n, err := strconv.ParseUint(raw, 10, bits)
	if err != nil || n < min {
		return 0, fmt.Errorf("%w: %s=%s", errMalformedHash, name, raw)
	}
	return n, nil
}

func encodePHC(id string, version int, params string, salt, sum []byte) string {
	var b strings.Builder
	b.WriteString("$")
	b.WriteString(id)
	b.WriteString("$v=")
	b.WriteString(strconv.Itoa(version))
	b.WriteString("$")
	b.WriteString(params)
	b.WriteString("$")
	b.WriteString(base64.StdEncoding.EncodeToString(salt))
	b.WriteString("$")
	b.WriteString(base64.StdEncoding.EncodeToString(sum))
	return b.String()
}
