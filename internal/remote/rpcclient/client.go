// Package rpcclient implements remote.Backend over Connect.
package rpcclient

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mmynk/mealsync/internal/codec"
	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
	"github.com/mmynk/mealsync/internal/rpcapi"
)

// Ensure Client implements remote.Backend
var _ remote.Backend = (*Client)(nil)

type unary = connect.Client[structpb.Struct, structpb.Struct]

// Client talks to a mealsync backend. The access token obtained by
// SignInWithPassword is kept in memory and attached to every later call.
type Client struct {
	selectRows *unary
	insert     *unary
	update     *unary
	download   *connect.Client[structpb.Struct, wrapperspb.BytesValue]
	upload     *unary
	signIn     *unary
	signUp     *unary
	signOut    *unary
	getUser    *unary

	mu    sync.RWMutex
	token string
}

// New creates a client for the backend at baseURL.
func New(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{}
	opts = append([]connect.ClientOption{connect.WithInterceptors(c.bearer())}, opts...)

	newUnary := func(procedure string) *unary {
		return connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}
	c.selectRows = newUnary(rpcapi.SelectProcedure)
	c.insert = newUnary(rpcapi.InsertProcedure)
	c.update = newUnary(rpcapi.UpdateProcedure)
	c.download = connect.NewClient[structpb.Struct, wrapperspb.BytesValue](httpClient, baseURL+rpcapi.DownloadProcedure, opts...)
	c.upload = newUnary(rpcapi.UploadProcedure)
	c.signIn = newUnary(rpcapi.SignInProcedure)
	c.signUp = newUnary(rpcapi.SignUpProcedure)
	c.signOut = newUnary(rpcapi.SignOutProcedure)
	c.getUser = newUnary(rpcapi.GetUserProcedure)
	return c
}

// Token returns the current access token, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken installs an access token obtained elsewhere.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// bearer attaches the access token to outgoing requests.
func (c *Client) bearer() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token := c.Token(); token != "" && req.Spec().IsClient {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

func (c *Client) Select(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	msg, err := rpcapi.SelectRequest(table, q)
	if err != nil {
		return nil, remote.NewError(remote.ErrValidation, "", err.Error())
	}
	resp, err := c.selectRows.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return rpcapi.ParseRows(resp.Msg)
}

func (c *Client) Insert(ctx context.Context, table string, rows []remote.Row) error {
	msg, err := rpcapi.RowsMessage(table, rows)
	if err != nil {
		return remote.NewError(remote.ErrValidation, "", err.Error())
	}
	_, err = c.insert.CallUnary(ctx, connect.NewRequest(msg))
	return err
}

func (c *Client) Update(ctx context.Context, table string, patch remote.Row, eqField string, eqValue any) error {
	msg, err := rpcapi.UpdateRequest(table, patch, eqField, eqValue)
	if err != nil {
		return remote.NewError(remote.ErrValidation, "", err.Error())
	}
	_, err = c.update.CallUnary(ctx, connect.NewRequest(msg))
	return err
}

func (c *Client) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	msg, err := rpcapi.ToStruct(map[string]any{"bucket": bucket, "path": path})
	if err != nil {
		return nil, err
	}
	resp, err := c.download.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg.GetValue(), nil
}

func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, mimeType string) error {
	msg, err := rpcapi.ToStruct(map[string]any{
		"bucket":    bucket,
		"path":      path,
		"mime_type": mimeType,
		"data":      codec.ToBase64(data),
	})
	if err != nil {
		return err
	}
	_, err = c.upload.CallUnary(ctx, connect.NewRequest(msg))
	return err
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*remote.AuthSession, error) {
	msg, err := rpcapi.Credentials(email, password)
	if err != nil {
		return nil, err
	}
	resp, err := c.signIn.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	sess, err := rpcapi.ParseSession(resp.Msg)
	if err != nil {
		return nil, fmt.Errorf("malformed sign-in response: %w", err)
	}
	c.SetToken(sess.AccessToken)
	return sess, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	msg, err := rpcapi.Credentials(email, password)
	if err != nil {
		return nil, err
	}
	resp, err := c.signUp.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return rpcapi.ParseUser(resp.Msg), nil
}

// SignOut revokes the session remotely and forgets the token. Without a
// token there is nothing to revoke and the call is local only.
func (c *Client) SignOut(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	_, err := c.signOut.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) GetUser(ctx context.Context) (*models.User, error) {
	if c.Token() == "" {
		return nil, remote.NewError(remote.ErrAuth, "", "Auth session missing!")
	}
	resp, err := c.getUser.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return nil, err
	}
	user := rpcapi.ParseUser(resp.Msg)
	if user == nil {
		return nil, remote.NewError(remote.ErrAuth, "", "Auth session missing!")
	}
	return user, nil
}
