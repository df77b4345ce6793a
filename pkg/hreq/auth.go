package hreq

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"

	"github.com/brendan.keane/hreq/internal/errors"
)

// sigV4RoundTripper signs every outgoing request, including redirects, with
// credentials from the default AWS chain.
type sigV4RoundTripper struct {
	next    http.RoundTripper
	service string
	region  string
	logger  zerolog.Logger
}

func (rt *sigV4RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to load AWS configuration").
			WithContext("suggestion", "ensure AWS credentials are configured")
	}

	region := rt.region
	if region == "" {
		region = cfg.Region
	}
	if region == "" {
		return nil, errors.New(errors.ErrorTypeTransport, "AWS region not configured").
			WithContext("suggestion", "set AWS_REGION or pass a region to SetSigV4")
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to retrieve AWS credentials")
	}

	body, err := drainBody(req)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	signed := req.Clone(ctx)
	signed.Body = io.NopCloser(bytes.NewReader(body))
	if err := v4.NewSigner().SignHTTP(ctx, creds, signed, payloadHash, rt.service, region, time.Now()); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to sign request with SigV4").
			WithContext("service", rt.service).
			WithContext("region", region)
	}

	rt.logger.Debug().
		Str("service", rt.service).
		Str("region", region).
		Msg("SigV4 signature applied")
	return rt.next.RoundTrip(signed)
}

func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read request body")
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// digestRoundTripper answers a 401 Digest challenge once, per RFC 7616 with
// qop=auth and the MD5 or SHA-256 algorithms.
type digestRoundTripper struct {
	next     http.RoundTripper
	username string
	password string
}

func (rt *digestRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := drainBody(req)
	if err != nil {
		return nil, err
	}

	first := req.Clone(req.Context())
	first.Body = io.NopCloser(bytes.NewReader(body))
	resp, err := rt.next.RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	challenge := parseDigestChallenge(resp.Header.Values("WWW-Authenticate"))
	if challenge == nil {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	authz, err := challenge.authorize(req.Method, req.URL.RequestURI(), rt.username, rt.password)
	if err != nil {
		return nil, err
	}
	second := req.Clone(req.Context())
	second.Body = io.NopCloser(bytes.NewReader(body))
	second.Header.Set("Authorization", authz)
	return rt.next.RoundTrip(second)
}

type digestChallenge struct {
	realm     string
	nonce     string
	opaque    string
	algorithm string
	qop       string
}

func parseDigestChallenge(values []string) *digestChallenge {
	for _, v := range values {
		scheme, params, ok := strings.Cut(strings.TrimSpace(v), " ")
		if !ok || !strings.EqualFold(scheme, "Digest") {
			continue
		}
		c := &digestChallenge{algorithm: "MD5"}
		for _, part := range splitDigestParams(params) {
			key, val, _ := strings.Cut(part, "=")
			val = strings.Trim(strings.TrimSpace(val), `"`)
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "realm":
				c.realm = val
			case "nonce":
				c.nonce = val
			case "opaque":
				c.opaque = val
			case "algorithm":
				c.algorithm = strings.ToUpper(val)
			case "qop":
				for _, q := range strings.Split(val, ",") {
					if strings.TrimSpace(q) == "auth" {
						c.qop = "auth"
					}
				}
			}
		}
		return c
	}
	return nil
}

// splitDigestParams splits on commas outside quoted strings.
func splitDigestParams(s string) []string {
	var parts []string
	var cur strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case r == ',' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func (c *digestChallenge) authorize(method, uri, username, password string) (string, error) {
	var newHash func() hash.Hash
	switch c.algorithm {
	case "MD5":
		newHash = md5.New
	case "SHA-256":
		newHash = sha256.New
	default:
		return "", errors.New(errors.ErrorTypeCapability, "unsupported digest algorithm").
			WithContext("algorithm", c.algorithm)
	}
	h := func(s string) string {
		d := newHash()
		_, _ = io.WriteString(d, s)
		return hex.EncodeToString(d.Sum(nil))
	}

	ha1 := h(username + ":" + c.realm + ":" + password)
	ha2 := h(method + ":" + uri)

	var sb strings.Builder
	fmt.Fprintf(&sb, `Digest username="%s", realm="%s", nonce="%s", uri="%s", algorithm=%s`,
		username, c.realm, c.nonce, uri, c.algorithm)
	if c.qop == "auth" {
		cnonceRaw := make([]byte, 8)
		if _, err := rand.Read(cnonceRaw); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to generate cnonce")
		}
		cnonce := hex.EncodeToString(cnonceRaw)
		const nc = "00000001"
		response := h(ha1 + ":" + c.nonce + ":" + nc + ":" + cnonce + ":auth:" + ha2)
		fmt.Fprintf(&sb, `, qop=auth, nc=%s, cnonce="%s", response="%s"`, nc, cnonce, response)
	} else {
		fmt.Fprintf(&sb, `, response="%s"`, h(ha1+":"+c.nonce+":"+ha2))
	}
	if c.opaque != "" {
		fmt.Fprintf(&sb, `, opaque="%s"`, c.opaque)
	}
	return sb.String(), nil
}
