package platform

import (
	"context"
	"errors"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
)

// ErrUnauthorized is returned when the server rejects the session.
var ErrUnauthorized = errors.New("session rejected by server")

// Client is the federated-protocol surface the migration core consumes. Each
// Client is bound to one server and one session. Non-2xx answers come back as
// a Response status code; only transport failures are returned as errors.
type Client interface {
	// Host returns the hostname the client talks to.
	Host() string

	// DescribeServer fetches a fresh snapshot of the server's capabilities.
	DescribeServer(ctx context.Context) (*models.ServerConfiguration, error)

	// Identity returns the DID of the authenticated account.
	Identity(ctx context.Context) (string, error)

	CreateRecord(ctx context.Context, collection, rkey string, value any) (*RecordResponse, error)
	DeleteRecord(ctx context.Context, collection, rkey string) (*Response, error)
	GetProfile(ctx context.Context, actor string) (*ProfileResponse, error)
	GetFollows(ctx context.Context, actor string, limit int, cursor string) (*FollowsResponse, error)
	GetAuthorFeed(ctx context.Context, actor string, limit int) (*FeedResponse, error)

	// ExportRepository downloads the account repository as a CAR file.
	ExportRepository(ctx context.Context, did string) ([]byte, error)

	// ImportRepository uploads a CAR file into the authenticated account.
	ImportRepository(ctx context.Context, car []byte) (*Response, error)
}

// Response carries the HTTP status of an XRPC call.
type Response struct {
	StatusCode int `json:"-"`
}

// OK reports whether the call succeeded.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RecordResponse is the result of createRecord.
type RecordResponse struct {
	Response
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// Profile is the subset of an actor profile compared during verification.
type Profile struct {
	DID            string `json:"did"`
	Handle         string `json:"handle"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	FollowersCount int    `json:"followersCount"`
	FollowsCount   int    `json:"followsCount"`
	PostsCount     int    `json:"postsCount"`
}

// ProfileResponse is the result of getProfile.
type ProfileResponse struct {
	Response
	Profile *Profile
}

// Actor is an entry in a follows listing.
type Actor struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

// FollowsResponse is one page of getFollows.
type FollowsResponse struct {
	Response
	Follows []Actor `json:"follows"`
	Cursor  string  `json:"cursor,omitempty"`
}

// Post is a minimal feed entry.
type Post struct {
	URI       string `json:"uri"`
	CID       string `json:"cid"`
	IndexedAt string `json:"indexedAt"`
}

// FeedResponse is one page of getAuthorFeed.
type FeedResponse struct {
	Response
	Posts []Post
}
