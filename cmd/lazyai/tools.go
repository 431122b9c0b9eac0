package main

import (
	"context"
	"time"

	"github.com/narumiruna/lazyopenai"
)

type AddNumbers struct {
	A float64 `json:"a" description:"The first number"`
	B float64 `json:"b" description:"The second number"`
}

func (AddNumbers) Doc() string { return "Add two numbers" }

func (n AddNumbers) Call(context.Context) (any, error) { return n.A + n.B, nil }

type GetCurrentTime struct{}

func (GetCurrentTime) Doc() string { return "Get the current local date and time" }

func (GetCurrentTime) Call(context.Context) (any, error) {
	return time.Now().Format(time.DateTime), nil
}

func builtinTools() ([]lazyopenai.Tool, error) {
	add, err := lazyopenai.NewStructTool[AddNumbers]()
	if err != nil {
		return nil, err
	}
	now, err := lazyopenai.NewStructTool[GetCurrentTime](lazyopenai.WithTimeout(time.Second))
	if err != nil {
		return nil, err
	}
	return []lazyopenai.Tool{add, now}, nil
}
