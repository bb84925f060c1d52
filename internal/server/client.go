package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed client of the grading service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return err
	}
	return FromStruct(out, resp)
}

func (c *Client) SubmitFile(ctx context.Context, filename string, content []byte) (JobView, error) {
	var v JobView
	err := c.call(ctx, MethodSubmitFile, SubmitRequest{Filename: filename, Content: content}, &v)
	return v, err
}

func (c *Client) IngestPath(ctx context.Context, path string) (IngestResult, error) {
	var v IngestResult
	err := c.call(ctx, MethodIngestPath, IngestPathRequest{Path: path}, &v)
	return v, err
}

func (c *Client) IngestDirectory(ctx context.Context, root string, skipHidden *bool) (IngestView, error) {
	var v IngestView
	err := c.call(ctx, MethodIngestDirectory, IngestDirectoryRequest{RootPath: root, SkipHidden: skipHidden}, &v)
	return v, err
}

func (c *Client) GetJob(ctx context.Context, sessionID string) (JobView, error) {
	var v JobView
	err := c.call(ctx, MethodGetJob, SessionRequest{SessionID: sessionID}, &v)
	return v, err
}

func (c *Client) ListJobs(ctx context.Context) ([]JobView, error) {
	var v JobListView
	err := c.call(ctx, MethodListJobs, struct{}{}, &v)
	return v.Jobs, err
}

func (c *Client) CancelJob(ctx context.Context, sessionID string) (JobView, error) {
	var v JobView
	err := c.call(ctx, MethodCancelJob, SessionRequest{SessionID: sessionID}, &v)
	return v, err
}

func (c *Client) ResumeSession(ctx context.Context, sessionID string) (JobView, error) {
	var v JobView
	err := c.call(ctx, MethodResumeSession, SessionRequest{SessionID: sessionID}, &v)
	return v, err
}

func (c *Client) GetResult(ctx context.Context, name string) (ResultView, error) {
	var v ResultView
	err := c.call(ctx, MethodGetResult, ResultRequest{Name: name}, &v)
	return v, err
}

func (c *Client) GetConfig(ctx context.Context) (ConfigView, error) {
	var v ConfigView
	err := c.call(ctx, MethodGetConfig, struct{}{}, &v)
	return v, err
}
