// Package client provides a thin façade over a node's request channel:
// Mutate, Query and Status, each a synchronous call layered on a
// fire-and-correlate message exchange.
package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cobaltdb/raftkv/message"
)

// Request is what the façade hands to whatever owns the node's inbound
// message channel: an Event to deliver from Client, plus a one-shot channel
// to receive the eventual ClientResponse's Result on.
type Request struct {
	ID       string
	Event    message.Event
	Response chan message.Result
}

// Client submits requests to a node over a shared channel and waits for the
// correlated response.
type Client struct {
	requests chan<- Request
}

// New constructs a Client that submits requests on ch.
func New(ch chan<- Request) *Client {
	return &Client{requests: ch}
}

func (c *Client) call(ctx context.Context, req message.Request) (message.Response, error) {
	id := uuid.NewString()
	respCh := make(chan message.Result, 1)
	r := Request{ID: id, Event: message.ClientRequestEvent(id, req), Response: respCh}

	select {
	case c.requests <- r:
	case <-ctx.Done():
		return message.Response{}, ctx.Err()
	}

	select {
	case result := <-respCh:
		return result.Response, result.Err
	case <-ctx.Done():
		return message.Response{}, ctx.Err()
	}
}

// Mutate submits a replicated write and waits for its result.
func (c *Client) Mutate(ctx context.Context, command []byte) ([]byte, error) {
	resp, err := c.call(ctx, message.Mutate(command))
	if err != nil {
		return nil, err
	}
	if resp.Kind != message.ResponseState {
		return nil, fmt.Errorf("client: unexpected response kind %v for mutate", resp.Kind)
	}
	return resp.State, nil
}

// Query submits a quorum-confirmed read and waits for its result.
func (c *Client) Query(ctx context.Context, command []byte) ([]byte, error) {
	resp, err := c.call(ctx, message.Query(command))
	if err != nil {
		return nil, err
	}
	if resp.Kind != message.ResponseState {
		return nil, fmt.Errorf("client: unexpected response kind %v for query", resp.Kind)
	}
	return resp.State, nil
}

// Status fetches the node's locally observed consensus status.
func (c *Client) Status(ctx context.Context) (message.NodeStatus, error) {
	resp, err := c.call(ctx, message.Status())
	if err != nil {
		return message.NodeStatus{}, err
	}
	if resp.Kind != message.ResponseStatus {
		return message.NodeStatus{}, fmt.Errorf("client: unexpected response kind %v for status", resp.Kind)
	}
	return resp.Status, nil
}
