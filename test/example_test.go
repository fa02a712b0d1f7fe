package test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/session"
)

func exampleConfig() goSession.Config {
	accessPub, accessPriv, _ := ed25519.GenerateKey(rand.Reader)
	refreshPub, refreshPriv, _ := ed25519.GenerateKey(rand.Reader)

	cfg := goSession.DefaultConfig()
	cfg.JWT.AccessPrivateKey = accessPriv
	cfg.JWT.AccessPublicKey = accessPub
	cfg.JWT.RefreshPrivateKey = refreshPriv
	cfg.JWT.RefreshPublicKey = refreshPub
	return cfg
}

// ExampleNew builds an engine over an in-process store.
func ExampleNew() {
	engine, err := goSession.New().
		WithConfig(exampleConfig()).
		WithRepository(session.NewMemoryStore()).
		Build()
	if err != nil {
		fmt.Println("build:", err)
		return
	}
	defer engine.Close()

	fmt.Println(engine.SecurityReport().SigningAlgorithm)
	// Output: ed25519
}

// ExampleEngine_Refresh shows rotation and what a replayed token does.
func ExampleEngine_Refresh() {
	engine, _ := goSession.New().
		WithConfig(exampleConfig()).
		WithRepository(session.NewMemoryStore()).
		Build()
	defer engine.Close()
	ctx := context.Background()

	issued, _ := engine.Issue(ctx, goSession.IssueRequest{UserID: "alice"})

	rotated, err := engine.Refresh(ctx, issued.RefreshToken)
	fmt.Println("first refresh:", err == nil, rotated.RefreshToken != issued.RefreshToken)

	_, err = engine.Refresh(ctx, issued.RefreshToken)
	fmt.Println("replay:", errors.Is(err, goSession.ErrRefreshReuse), goSession.ErrorCode(err))

	_, err = engine.Refresh(ctx, rotated.RefreshToken)
	fmt.Println("after replay:", errors.Is(err, goSession.ErrRefreshReuse))
	// Output:
	// first refresh: true true
	// replay: true TOKEN_INVALID
	// after replay: true
}

// ExampleEngine_Logout ends one session; an empty token ends all of them.
func ExampleEngine_Logout() {
	engine, _ := goSession.New().
		WithConfig(exampleConfig()).
		WithRepository(session.NewMemoryStore()).
		Build()
	defer engine.Close()
	ctx := context.Background()

	laptop, _ := engine.Issue(ctx, goSession.IssueRequest{UserID: "alice"})
	_, _ = engine.Issue(ctx, goSession.IssueRequest{UserID: "alice"})

	_ = engine.Logout(ctx, "alice", laptop.RefreshToken)
	active, _ := engine.ActiveSessions(ctx, "alice")
	fmt.Println(len(active))

	_ = engine.Logout(ctx, "alice", "")
	active, _ = engine.ActiveSessions(ctx, "alice")
	fmt.Println(len(active))
	// Output:
	// 1
	// 0
}
