package providers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const (
	bedrockSigningName = "bedrock"

	// placeholder bearer handed to the SDK when requests are SigV4 signed
	sigV4Placeholder = "sigv4"
)

// awsKeyPair is an access key credential stored as "AKID:SECRET" or
// "AKID:SECRET:SESSION_TOKEN".
type awsKeyPair struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// parseAWSKeyPair reports false for secrets that are not key pairs, which
// are then used as Bedrock bearer API keys.
func parseAWSKeyPair(secret string) (awsKeyPair, bool) {
	parts := strings.SplitN(secret, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return awsKeyPair{}, false
	}
	pair := awsKeyPair{AccessKeyID: parts[0], SecretAccessKey: parts[1]}
	if len(parts) == 3 {
		pair.SessionToken = parts[2]
	}
	return pair, true
}

// sigV4Transport replaces bearer authentication with an AWS SigV4
// signature over the request.
type sigV4Transport struct {
	base   http.RoundTripper
	creds  aws.CredentialsProvider
	signer *v4.Signer
	region string
	now    func() time.Time
}

func newSigV4Transport(base http.RoundTripper, pair awsKeyPair, region string) *sigV4Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &sigV4Transport{
		base:   base,
		creds:  credentials.NewStaticCredentialsProvider(pair.AccessKeyID, pair.SecretAccessKey, pair.SessionToken),
		signer: v4.NewSigner(),
		region: region,
		now:    time.Now,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *sigV4Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body for signing: %w", err)
		}
	}

	signed := req.Clone(ctx)
	signed.Body = io.NopCloser(bytes.NewReader(body))
	signed.ContentLength = int64(len(body))
	signed.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	signed.Header.Del("Authorization")
	signed.Header.Del("X-Api-Key")
	signed.Header.Del("X-Amz-Date")
	signed.Header.Del("X-Amz-Security-Token")

	creds, err := t.creds.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve aws credentials: %w", err)
	}

	sum := sha256.Sum256(body)
	region := regionFromHost(signed.URL.Hostname(), t.region)
	if err := t.signer.SignHTTP(ctx, creds, signed, hex.EncodeToString(sum[:]), bedrockSigningName, region, t.now()); err != nil {
		return nil, fmt.Errorf("failed to sign bedrock request: %w", err)
	}
	return t.base.RoundTrip(signed)
}

// regionFromHost extracts the region of a bedrock-runtime endpoint.
func regionFromHost(host, fallback string) string {
	const prefix, suffix = "bedrock-runtime.", ".amazonaws.com"
	if strings.HasPrefix(host, prefix) && strings.HasSuffix(host, suffix) {
		if region := strings.TrimSuffix(strings.TrimPrefix(host, prefix), suffix); region != "" {
			return region
		}
	}
	return fallback
}

// signingClient returns a copy of base whose transport signs with pair.
func signingClient(base *http.Client, pair awsKeyPair, region string) *http.Client {
	client := &http.Client{}
	var rt http.RoundTripper
	if base != nil {
		*client = *base
		rt = base.Transport
	}
	client.Transport = newSigV4Transport(rt, pair, region)
	return client
}
