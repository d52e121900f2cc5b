package migration

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

// fakeClient is an in-memory platform.Client. Zero status codes mean 200.
type fakeClient struct {
	mu sync.Mutex

	host        string
	cfg         models.ServerConfiguration
	describeErr error

	did              string
	identityErr      error
	failIdentityFrom int // fail the Nth and later Identity calls, 0 never
	identityCalls    int

	profile       *platform.Profile
	profileStatus int
	profileErr    error
	posts         int
	feedStatus    int
	feedErr       error
	followsStatus int

	car        []byte
	exportErr  error
	onExport   func()
	exportLate bool // finish the export even if onExport cancelled the call
	exports    int
	importCode int
	importErr  error
	imports    int

	createStatus int
	created      []string
	deleted      []string
}

func newFakeClient(host, version string, caps ...string) *fakeClient {
	return &fakeClient{
		host: host,
		cfg: models.ServerConfiguration{
			Hostname:          host,
			DisplayName:       host,
			Version:           version,
			Capabilities:      caps,
			SupportsMigration: true,
		},
		did:     "did:plc:alice",
		profile: &platform.Profile{DID: "did:plc:alice", DisplayName: "Alice", Description: "hi", PostsCount: 10, FollowsCount: 5},
		posts:   3,
		car:     []byte("car-bytes"),
	}
}

func status(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}

func (f *fakeClient) Host() string { return f.host }

func (f *fakeClient) DescribeServer(ctx context.Context) (*models.ServerConfiguration, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	cfg := f.cfg
	return &cfg, nil
}

func (f *fakeClient) Identity(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identityCalls++
	if f.identityErr != nil {
		return "", f.identityErr
	}
	if f.failIdentityFrom > 0 && f.identityCalls >= f.failIdentityFrom {
		return "", errors.New("session lost")
	}
	return f.did, nil
}

func (f *fakeClient) CreateRecord(ctx context.Context, collection, rkey string, value any) (*platform.RecordResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, collection+"/"+rkey)
	return &platform.RecordResponse{Response: platform.Response{StatusCode: status(f.createStatus)}}, nil
}

func (f *fakeClient) DeleteRecord(ctx context.Context, collection, rkey string) (*platform.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, collection+"/"+rkey)
	return &platform.Response{StatusCode: http.StatusOK}, nil
}

func (f *fakeClient) GetProfile(ctx context.Context, actor string) (*platform.ProfileResponse, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	resp := &platform.ProfileResponse{Response: platform.Response{StatusCode: status(f.profileStatus)}}
	if resp.OK() && f.profile != nil {
		p := *f.profile
		resp.Profile = &p
	}
	return resp, nil
}

func (f *fakeClient) GetFollows(ctx context.Context, actor string, limit int, cursor string) (*platform.FollowsResponse, error) {
	return &platform.FollowsResponse{
		Response: platform.Response{StatusCode: status(f.followsStatus)},
		Follows:  []platform.Actor{{DID: "did:plc:bob"}},
	}, nil
}

func (f *fakeClient) GetAuthorFeed(ctx context.Context, actor string, limit int) (*platform.FeedResponse, error) {
	if f.feedErr != nil {
		return nil, f.feedErr
	}
	resp := &platform.FeedResponse{Response: platform.Response{StatusCode: status(f.feedStatus)}}
	for i := 0; i < min(f.posts, limit); i++ {
		resp.Posts = append(resp.Posts, platform.Post{URI: "at://post"})
	}
	return resp, nil
}

func (f *fakeClient) ExportRepository(ctx context.Context, did string) ([]byte, error) {
	f.mu.Lock()
	f.exports++
	hook := f.onExport
	f.mu.Unlock()
	if hook != nil {
		hook()
		if err := ctx.Err(); err != nil && !f.exportLate {
			return nil, err
		}
	}
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return f.car, nil
}

func (f *fakeClient) ImportRepository(ctx context.Context, car []byte) (*platform.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imports++
	if f.importErr != nil {
		return nil, f.importErr
	}
	return &platform.Response{StatusCode: status(f.importCode)}, nil
}
