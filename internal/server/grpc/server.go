// Package grpcserver exposes the Journal gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/reflekt/internal/convert"
	"github.com/and161185/reflekt/internal/errs"
	"github.com/and161185/reflekt/internal/journal"
	"github.com/and161185/reflekt/internal/model"
	"github.com/and161185/reflekt/internal/service"
)

// InvalidateHeader carries the views a mutation made stale.
const InvalidateHeader = "x-invalidate"

// Save and delete failure reasons reported to the editor.
const (
	ReasonEmpty        = "empty"
	ReasonUnauthorized = "unauthorized"
	ReasonNotFound     = "not_found"
	ReasonPersistence  = "persistence"
)

// PublicMethods do not require a bearer token.
var PublicMethods = []string{FullMethod(MethodRegister), FullMethod(MethodLogin)}

// ReasonMethods answer a missing or invalid session with reason "unauthorized"
// in the response body instead of a status error.
var ReasonMethods = []string{FullMethod(MethodSaveEntry), FullMethod(MethodDeleteEntry)}

// Server wires services into gRPC handlers.
type Server struct {
	auth    service.AuthService
	entries service.EntryService
	archive service.ArchiveService
	signKey []byte
	loc     *time.Location
	log     *zap.Logger
}

var _ JournalServer = (*Server)(nil)

// New constructs a gRPC server with injected services. Dates in archive
// filters and the "today" window are read in loc.
func New(auth service.AuthService, entries service.EntryService, archive service.ArchiveService,
	signKey []byte, loc *time.Location, log *zap.Logger) *Server {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, entries: entries, archive: archive, signKey: signKey, loc: loc, log: log}
}

func obj(f map[string]*structpb.Value) *structpb.Struct { return &structpb.Struct{Fields: f} }

func isValidation(err error) bool {
	return strings.HasPrefix(err.Error(), "validation:") || errors.Is(err, errs.ErrEmptyEntry)
}

// setInvalidate reports stale views as response header; absent outside a real stream.
func setInvalidate(ctx context.Context, views []string) {
	if len(views) == 0 {
		return
	}
	_ = grpc.SetHeader(ctx, metadata.MD{InvalidateHeader: views})
}

// --- Auth ---

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, password := convert.Str(req, "email"), convert.Str(req, "password")
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty email/password")
	}
	userID, err := s.auth.Register(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrAlreadyExists):
			return nil, status.Error(codes.AlreadyExists, "email taken")
		case isValidation(err):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			return nil, status.Errorf(codes.Internal, "register: %v", err)
		}
	}
	return obj(map[string]*structpb.Value{"user_id": structpb.NewStringValue(userID.String())}), nil
}

// remoteIP returns the peer host without its port.
func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		return addr
	}
	return ""
}

// Login authenticates a user and returns an access token.
func (s *Server) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tok, u, err := s.auth.LoginWithIP(ctx, convert.Str(req, "email"), convert.Str(req, "password"), remoteIP(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		if errors.Is(err, errs.ErrRateLimited) {
			return nil, status.Error(codes.ResourceExhausted, "rate limited")
		}
		return nil, status.Errorf(codes.Internal, "login: %v", err)
	}
	return obj(map[string]*structpb.Value{
		"access_token": structpb.NewStringValue(tok.AccessToken),
		"expires_at":   structpb.NewStringValue(tok.ExpiresAt.UTC().Format(time.RFC3339)),
		"user_id":      structpb.NewStringValue(u.ID.String()),
	}), nil
}

// --- Entries ---

func failure(reason string) *structpb.Struct {
	return obj(map[string]*structpb.Value{
		"success": structpb.NewBoolValue(false),
		"reason":  structpb.NewStringValue(reason),
	})
}

// SaveEntry creates or updates an entry. Business failures are reported in
// the response as success=false plus a reason, never as a transport error.
func (s *Server) SaveEntry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := convert.SaveRequestFromStruct(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	userID, err := s.userID(ctx)
	if err != nil {
		return failure(ReasonUnauthorized), nil
	}

	res, err := s.entries.Save(ctx, userID, in)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrEmptyEntry):
			return failure(ReasonEmpty), nil
		case errors.Is(err, errs.ErrUnauthorized):
			return failure(ReasonUnauthorized), nil
		case errors.Is(err, errs.ErrNotFound):
			return failure(ReasonNotFound), nil
		default:
			s.log.Warn("save entry failed",
				zap.String("user_id", userID.String()),
				zap.Int64("entry_id", in.ID),
				zap.Error(err),
			)
			return failure(ReasonPersistence), nil
		}
	}

	setInvalidate(ctx, res.Invalidate)
	out := map[string]*structpb.Value{
		"success": structpb.NewBoolValue(true),
		"created": structpb.NewBoolValue(res.Created),
		"entry":   structpb.NewStructValue(convert.EntryToStruct(res.Entry)),
	}
	if res.Created {
		out["location"] = structpb.NewStringValue(journal.EntryPath(res.Entry.ID))
	}
	return obj(out), nil
}

// DeleteEntry removes an entry owned by the caller.
func (s *Server) DeleteEntry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.ParseEntryID(req.GetFields()["id"])
	if err != nil || model.IsNew(id) {
		return nil, status.Error(codes.InvalidArgument, "bad id")
	}
	userID, err := s.userID(ctx)
	if err != nil {
		return failure(ReasonUnauthorized), nil
	}
	views, err := s.entries.Delete(ctx, userID, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return failure(ReasonNotFound), nil
		}
		s.log.Warn("delete entry failed", zap.Int64("entry_id", id), zap.Error(err))
		return failure(ReasonPersistence), nil
	}
	setInvalidate(ctx, views)
	return obj(map[string]*structpb.Value{"success": structpb.NewBoolValue(true)}), nil
}

// GetEntry returns a single entry by id.
func (s *Server) GetEntry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	id, err := convert.ParseEntryID(req.GetFields()["id"])
	if err != nil || model.IsNew(id) {
		return nil, status.Error(codes.InvalidArgument, "bad id")
	}
	e, err := s.entries.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "not found")
		}
		return nil, status.Errorf(codes.Internal, "get entry: %v", err)
	}
	return obj(map[string]*structpb.Value{"entry": structpb.NewStructValue(convert.EntryToStruct(*e))}), nil
}

// TodayEntry returns the caller's entry for the current day, if any.
// An optional "now" field (RFC 3339) pins the reference instant and its zone.
func (s *Server) TodayEntry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	now, err := convert.Time(req, "now")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if now.IsZero() {
		now = time.Now().In(s.loc)
	}
	e, err := s.entries.Today(ctx, userID, now)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return obj(map[string]*structpb.Value{"found": structpb.NewBoolValue(false)}), nil
		}
		return nil, status.Errorf(codes.Internal, "today: %v", err)
	}
	return obj(map[string]*structpb.Value{
		"found": structpb.NewBoolValue(true),
		"entry": structpb.NewStructValue(convert.EntryToStruct(*e)),
	}), nil
}

// ListEntries returns one filtered page of the archive.
func (s *Server) ListEntries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	f, err := journal.ParseFilter(convert.Str(req, "query"), convert.Str(req, "from"), convert.Str(req, "to"), s.loc)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	page, err := convert.PageNumber(req, "page")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p, err := s.archive.List(ctx, userID, model.ArchiveQuery{Filter: f, Page: page})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list: %v", err)
	}
	return convert.PageToStruct(p), nil
}

// RecentEntries returns the newest entries for the sidebar.
func (s *Server) RecentEntries(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	es, err := s.entries.Recent(ctx, userID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "recent: %v", err)
	}
	return obj(map[string]*structpb.Value{"items": convert.EntriesToList(es)}), nil
}

// ImportEntries stores a batch of legacy entries.
func (s *Server) ImportEntries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	source, entries, err := convert.ImportFromStruct(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad entries: %v", err)
	}
	n, err := s.entries.Import(ctx, userID, source, entries)
	if err != nil {
		if isValidation(err) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "import: %v", err)
	}
	if n > 0 {
		setInvalidate(ctx, []string{journal.ViewHome, journal.ViewArchive})
	}
	return obj(map[string]*structpb.Value{"imported": structpb.NewNumberValue(float64(n))}), nil
}

// userID returns the caller set by AuthUnary, verifying the bearer token itself
// when the handler runs without the interceptor.
func (s *Server) userID(ctx context.Context) (uuid.UUID, error) {
	if id, ok := UserIDFromCtx(ctx); ok && id != uuid.Nil {
		return id, nil
	}
	return userIDFromToken(ctx, s.signKey)
}
