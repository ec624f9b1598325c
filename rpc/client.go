package rpc

import (
	"fmt"
	"net/rpc"
	"strconv"
	"time"
)

type Client struct {
	client *rpc.Client
}

func NewClient(port int) (*Client, error) {
	var (
		client *rpc.Client
		err    error
	)
	const maxretries = 5
	for i := range maxretries {
		if client, err = rpc.DialHTTP("tcp", ":"+strconv.Itoa(port)); err == nil {
			break
		}
		client = nil
		modRPC.WarnZ("dial tcp failed").Error("err", err).Int("retry", i).End()
		time.Sleep(250 * time.Millisecond)
	}

	if client == nil {
		return nil, fmt.Errorf("dial failed max retries: %v", err)
	}

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	modRPC.DebugZ("closing rpc client").End()
	return c.client.Close()
}

func (c *Client) IsReady() bool {
	var ready bool
	if err := c.client.Call("debug.IsReady", &struct{}{}, &ready); err != nil {
		return false
	}
	return ready
}

func (c *Client) SetFlags(vcpu uint, flags uint64) error {
	return c.client.Call("debug.SetFlags", FlagsArgs{Vcpu: vcpu, Flags: flags}, &struct{}{})
}

func (c *Client) GetFlags(vcpu uint) (uint64, error) {
	var flags uint64
	err := c.client.Call("debug.GetFlags", vcpu, &flags)
	return flags, err
}

func (c *Client) VTLB(vcpu uint, capacity int) (VTLBReply, error) {
	var reply VTLBReply
	err := c.client.Call("debug.VTLB", VTLBArgs{Vcpu: vcpu, Capacity: capacity}, &reply)
	return reply, err
}

func (c *Client) Translate(vcpu uint, vaddr uint64) (TranslateReply, error) {
	var reply TranslateReply
	err := c.client.Call("debug.Translate", TranslateArgs{Vcpu: vcpu, Vaddr: vaddr}, &reply)
	return reply, err
}
