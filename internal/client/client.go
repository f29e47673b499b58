// Package client is a typed wrapper over the Journal gRPC service.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/reflekt/internal/convert"
	"github.com/and161185/reflekt/internal/errs"
	"github.com/and161185/reflekt/internal/model"
	grpcserver "github.com/and161185/reflekt/internal/server/grpc"
)

// ErrSaveRejected wraps a save or delete refused by the server with a reason.
var ErrSaveRejected = errors.New("rejected")

// Options select the transport.
type Options struct {
	Addr      string
	CAFile    string // PEM bundle to trust; system roots when empty
	Insecure  bool   // TLS without certificate verification (dev)
	Plaintext bool   // no TLS at all (local dev only)
	Token     string // bearer token sent with every call
}

// Client calls the Journal service.
type Client struct {
	cc *grpc.ClientConn
}

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // opt-in dev flag
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// Dial creates a client; extra options are appended (tests pass a dialer).
func Dial(o Options, extra ...grpc.DialOption) (*Client, error) {
	var creds credentials.TransportCredentials
	if o.Plaintext {
		creds = insecure.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(o.CAFile, o.Insecure); err != nil {
			return nil, err
		}
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if o.Token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: o.Token, secure: !o.Plaintext}))
	}
	opts = append(opts, extra...)
	cc, err := grpc.NewClient(o.Addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.cc.Close() }

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, grpcserver.FullMethod(method), in, out, opts...); err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

// fromStatus maps well-known codes back to domain sentinels.
func fromStatus(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", errs.ErrNotFound, status.Convert(err).Message())
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", errs.ErrUnauthorized, status.Convert(err).Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", errs.ErrRateLimited, status.Convert(err).Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, status.Convert(err).Message())
	default:
		return err
	}
}

func req(f map[string]*structpb.Value) *structpb.Struct { return &structpb.Struct{Fields: f} }

// Register creates an account and returns its user id.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	out, err := c.invoke(ctx, grpcserver.MethodRegister, req(map[string]*structpb.Value{
		"email":    structpb.NewStringValue(email),
		"password": structpb.NewStringValue(password),
	}))
	if err != nil {
		return "", err
	}
	return convert.Str(out, "user_id"), nil
}

// Login returns an access token.
func (c *Client) Login(ctx context.Context, email, password string) (model.Tokens, error) {
	out, err := c.invoke(ctx, grpcserver.MethodLogin, req(map[string]*structpb.Value{
		"email":    structpb.NewStringValue(email),
		"password": structpb.NewStringValue(password),
	}))
	if err != nil {
		return model.Tokens{}, err
	}
	exp, err := convert.Time(out, "expires_at")
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: convert.Str(out, "access_token"), ExpiresAt: exp}, nil
}

// Save sends a create-or-update intent. A refusal is returned as an error
// wrapping ErrSaveRejected together with the matching domain sentinel.
func (c *Client) Save(ctx context.Context, r model.SaveRequest) (model.SaveResult, error) {
	var hdr metadata.MD
	out, err := c.invoke(ctx, grpcserver.MethodSaveEntry, convert.SaveRequestToStruct(r), grpc.Header(&hdr))
	if err != nil {
		return model.SaveResult{}, err
	}
	if !convert.Bool(out, "success") {
		return model.SaveResult{}, rejection(convert.Str(out, "reason"))
	}
	e, err := convert.EntryFromStruct(out.GetFields()["entry"].GetStructValue())
	if err != nil {
		return model.SaveResult{}, err
	}
	return model.SaveResult{
		Entry:      e,
		Created:    convert.Bool(out, "created"),
		Invalidate: hdr.Get(grpcserver.InvalidateHeader),
	}, nil
}

func rejection(reason string) error {
	var base error
	switch reason {
	case grpcserver.ReasonEmpty:
		base = errs.ErrEmptyEntry
	case grpcserver.ReasonNotFound:
		base = errs.ErrNotFound
	case grpcserver.ReasonUnauthorized:
		base = errs.ErrUnauthorized
	default:
		return fmt.Errorf("%w: %s", ErrSaveRejected, reason)
	}
	return fmt.Errorf("%w: %w", ErrSaveRejected, base)
}

// Delete removes an entry and returns the views to refresh.
func (c *Client) Delete(ctx context.Context, id int64) ([]string, error) {
	var hdr metadata.MD
	out, err := c.invoke(ctx, grpcserver.MethodDeleteEntry, req(map[string]*structpb.Value{"id": convert.EntryIDValue(id)}), grpc.Header(&hdr))
	if err != nil {
		return nil, err
	}
	if !convert.Bool(out, "success") {
		return nil, rejection(convert.Str(out, "reason"))
	}
	return hdr.Get(grpcserver.InvalidateHeader), nil
}

func entryField(out *structpb.Struct) (*model.Entry, error) {
	e, err := convert.EntryFromStruct(out.GetFields()["entry"].GetStructValue())
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Get fetches one entry.
func (c *Client) Get(ctx context.Context, id int64) (*model.Entry, error) {
	out, err := c.invoke(ctx, grpcserver.MethodGetEntry, req(map[string]*structpb.Value{"id": convert.EntryIDValue(id)}))
	if err != nil {
		return nil, err
	}
	return entryField(out)
}

// Today returns the entry of now's calendar day, or errs.ErrNotFound.
func (c *Client) Today(ctx context.Context, now time.Time) (*model.Entry, error) {
	out, err := c.invoke(ctx, grpcserver.MethodTodayEntry, req(map[string]*structpb.Value{
		"now": structpb.NewStringValue(now.Format(time.RFC3339Nano)),
	}))
	if err != nil {
		return nil, err
	}
	if !convert.Bool(out, "found") {
		return nil, errs.ErrNotFound
	}
	return entryField(out)
}

// ListParams are raw archive filter inputs; dates use the YYYY-MM-DD layout.
type ListParams struct {
	Query string
	From  string
	To    string
	Page  int
}

// List returns one archive page.
func (c *Client) List(ctx context.Context, p ListParams) (model.Page, error) {
	out, err := c.invoke(ctx, grpcserver.MethodListEntries, req(map[string]*structpb.Value{
		"query": structpb.NewStringValue(strings.TrimSpace(p.Query)),
		"from":  structpb.NewStringValue(p.From),
		"to":    structpb.NewStringValue(p.To),
		"page":  structpb.NewNumberValue(float64(p.Page)),
	}))
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return model.Page{}, fmt.Errorf("%w: %s", errs.ErrInvalidFilter, status.Convert(err).Message())
		}
		return model.Page{}, err
	}
	return convert.PageFromStruct(out)
}

// Recent returns the sidebar entries.
func (c *Client) Recent(ctx context.Context) ([]model.Entry, error) {
	out, err := c.invoke(ctx, grpcserver.MethodRecentEntries, nil)
	if err != nil {
		return nil, err
	}
	return convert.EntriesFromList(out, "items")
}

// Import uploads legacy entries and returns how many were stored.
func (c *Client) Import(ctx context.Context, source string, entries []model.ImportedEntry) (int, error) {
	out, err := c.invoke(ctx, grpcserver.MethodImportEntries, convert.ImportToStruct(source, entries))
	if err != nil {
		return 0, err
	}
	return int(convert.Int(out, "imported")), nil
}
