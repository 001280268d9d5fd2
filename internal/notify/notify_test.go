package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sitebook/gateway/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	n := notify.New(notify.KindSuccess, "materials", "create", "Material added")
	assert.NotEqual(t, [16]byte{}, [16]byte(n.ID))
	assert.False(t, n.CreatedAt.IsZero())
	assert.Equal(t, "Material added", n.Message)
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	var got []string
	first := notify.Func(func(_ context.Context, n notify.Notification) error {
		got = append(got, "first:"+n.Message)
		return errors.New("ws down")
	})
	second := notify.Func(func(_ context.Context, n notify.Notification) error {
		got = append(got, "second:"+n.Message)
		return nil
	})

	fan := notify.Fanout{first, nil, second, notify.NewLog(zap.NewNop())}
	err := fan.Notify(context.Background(), notify.New(notify.KindError, "owners", "update", "boom"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws down")
	assert.Equal(t, []string{"first:boom", "second:boom"}, got)
}
