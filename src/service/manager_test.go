package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(name string, log *[]string, fail bool) Func {
	return Func{
		ModuleName: name,
		OnStart: func(context.Context) error {
			*log = append(*log, "start "+name)
			if fail {
				return errors.New("boom")
			}
			return nil
		},
		OnStop: func(context.Context) { *log = append(*log, "stop "+name) },
	}
}

func TestManagerStartsInOrderStopsInReverse(t *testing.T) {
	var log []string
	m := NewManager(nil, recorder("a", &log, false), recorder("b", &log, false))
	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	assert.Error(t, m.Add(recorder("c", &log, false)))

	m.Stop(context.Background())
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestManagerRollsBackOnFailure(t *testing.T) {
	var log []string
	m := NewManager(nil, recorder("a", &log, false), recorder("b", &log, true), recorder("c", &log, false))
	err := m.Start(context.Background())
	require.ErrorContains(t, err, "module b failed")
	assert.Equal(t, []string{"start a", "start b", "stop a"}, log)

	m.Stop(context.Background())
	assert.Len(t, log, 3)
}
