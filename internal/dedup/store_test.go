package dedup

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_AdmitRejectsRepeatedKey(t *testing.T) {
	t.Parallel()

	s := New(nil)
	require.Equal(t, Admitted, s.Admit("m1", "fp-a"))
	require.Equal(t, DuplicateRejected, s.Admit("m1", "fp-a"))
	require.Equal(t, DuplicateRejected, s.Admit("m1", "fp-b"))
	require.Equal(t, 1, s.Size())
	require.True(t, s.Seen("m1"))
	require.False(t, s.Seen("m2"))
}

func TestStore_FingerprintCollisionIsAdmittedButCounted(t *testing.T) {
	t.Parallel()

	s := New(nil)
	require.Equal(t, Admitted, s.Admit("m1", "same-print"))
	require.Equal(t, Admitted, s.Admit("m2", "same-print"))
	require.EqualValues(t, 1, s.Anomalies())
	require.Equal(t, 2, s.Size())
}

func TestStore_ConcurrentAdmitsSameKeyAdmitExactlyOne(t *testing.T) {
	t.Parallel()

	s := New(nil)
	const workers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Admit("contested", fmt.Sprintf("fp-%d", i)) == Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, admitted)
}
