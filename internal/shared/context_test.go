package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := ContextWithActor(context.Background(), &Actor{ID: 7, Username: "operator"})

	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, int64(7), actor.ID)
	require.Equal(t, "operator", actor.Username)
}

func TestActorFromBareContext(t *testing.T) {
	actor, ok := ActorFromContext(context.Background())
	require.False(t, ok)
	require.Nil(t, actor)
}

func TestActorFromContextNilActor(t *testing.T) {
	ctx := ContextWithActor(context.Background(), nil)

	actor, ok := ActorFromContext(ctx)
	require.False(t, ok)
	require.Nil(t, actor)
}
