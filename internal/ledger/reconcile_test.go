package ledger

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
)

func TestApplyUpdateInsertsIntoMiddleAndShiftsLaterDays(t *testing.T) {
	// 4/11 does not exist: gap filling gives it 100, the observed 110 is +10,
	// and 4/12 moves from 110 to 120.
	l := build(t, "2024-04-10:100", "2024-04-12:110")

	u := l.ApplyUpdate(d("2024-04-11"), amount("110"))

	assert.Equal(t, []string{"2024-04-10:100", "2024-04-11:110", "2024-04-12:120"}, dump(l))
	assert.False(t, u.Inserted)
	assert.Equal(t, 1, u.Filled)
	assert.Equal(t, 1, u.Propagated)
	assert.Equal(t, "10", u.Delta.String())
}

func TestApplyUpdateOnEmptyLedger(t *testing.T) {
	l := New("card-1")

	u := l.ApplyUpdate(d("2024-05-01"), amount("50"))

	assert.Equal(t, []string{"2024-05-01:50"}, dump(l))
	assert.True(t, u.Inserted)
	assert.Zero(t, u.Filled)
	assert.Zero(t, u.Propagated)
	assert.True(t, u.Delta.IsZero())
}

func TestApplyUpdateAfterLastDayBackfills(t *testing.T) {
	l := build(t, "2024-01-01:10")

	u := l.ApplyUpdate(d("2024-01-05"), amount("40"))

	assert.Equal(t, []string{
		"2024-01-01:10",
		"2024-01-02:10",
		"2024-01-03:10",
		"2024-01-04:10",
		"2024-01-05:40",
	}, dump(l))
	assert.True(t, u.Inserted)
	assert.Equal(t, 3, u.Filled)
	assert.Zero(t, u.Propagated)
}

func TestApplyUpdateExactHitPropagates(t *testing.T) {
	l := build(t, "2024-04-10:100", "2024-04-11:90", "2024-04-12:80", "2024-04-13:70")

	u := l.ApplyUpdate(d("2024-04-11"), amount("85.5"))

	assert.Equal(t, []string{"2024-04-10:100", "2024-04-11:85.5", "2024-04-12:75.5", "2024-04-13:65.5"}, dump(l))
	assert.Equal(t, "-4.5", u.Delta.String())
	assert.Equal(t, 2, u.Propagated)
	assert.False(t, u.Inserted)
}

func TestApplyUpdateSameBalanceIsNoop(t *testing.T) {
	l := build(t, "2024-04-10:100", "2024-04-11:90")

	u := l.ApplyUpdate(d("2024-04-10"), amount("100"))

	assert.Equal(t, []string{"2024-04-10:100", "2024-04-11:90"}, dump(l))
	assert.True(t, u.Delta.IsZero())
	assert.Zero(t, u.Propagated)
	assert.Empty(t, l.Dirty())
}

func TestApplyUpdateBeforeFirstDay(t *testing.T) {
	l := build(t, "2024-04-10:100", "2024-04-11:110")

	u := l.ApplyUpdate(d("2024-04-07"), amount("20"))

	assert.Equal(t, []string{
		"2024-04-07:20",
		"2024-04-08:20",
		"2024-04-09:20",
		"2024-04-10:100",
		"2024-04-11:110",
	}, dump(l))
	assert.True(t, u.Inserted)
	assert.Equal(t, 2, u.Filled)
}

func TestDirtyTracksChangedEntriesOnly(t *testing.T) {
	l := build(t, "2024-04-10:100", "2024-04-12:110", "2024-04-13:115")
	l.ApplyUpdate(d("2024-04-12"), amount("111"))

	var got []string
	for _, e := range l.Dirty() {
		got = append(got, e.Date.String()+":"+e.Balance.String())
	}
	// 4/11 is a filler, 4/12 was set and 4/13 shifted; 4/10 is untouched
	assert.Equal(t, []string{"2024-04-11:100", "2024-04-12:111", "2024-04-13:116"}, got)
	for _, e := range l.Dirty() {
		assert.Equal(t, "card-1", e.CardID)
	}
}

func TestFillGapsCarriesForward(t *testing.T) {
	l := build(t, "2023-04-10:800", "2023-04-11:1000", "2023-04-13:1100", "2023-04-16:900")

	n := l.FillGaps()

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{
		"2023-04-10:800",
		"2023-04-11:1000",
		"2023-04-12:1000",
		"2023-04-13:1100",
		"2023-04-14:1100",
		"2023-04-15:1100",
		"2023-04-16:900",
	}, dump(l))
}

func TestFillGapsTrivialLedgers(t *testing.T) {
	assert.Zero(t, New("card-1").FillGaps())

	l := build(t, "2024-04-10:100")
	assert.Zero(t, l.FillGaps())
	assert.Equal(t, []string{"2024-04-10:100"}, dump(l))
}

func TestFillGapsAcrossMonthAndLeapDay(t *testing.T) {
	l := build(t, "2024-02-27:5", "2024-03-02:6")
	assert.Equal(t, 3, l.FillGaps())
	assert.Equal(t, []string{
		"2024-02-27:5",
		"2024-02-28:5",
		"2024-02-29:5",
		"2024-03-01:5",
		"2024-03-02:6",
	}, dump(l))
}

func TestExtendThrough(t *testing.T) {
	l := build(t, "2024-04-10:100", "2024-04-11:110")

	assert.Equal(t, 2, l.ExtendThrough(d("2024-04-13")))
	assert.Equal(t, []string{"2024-04-10:100", "2024-04-11:110", "2024-04-12:110", "2024-04-13:110"}, dump(l))

	assert.Zero(t, l.ExtendThrough(d("2024-04-12")), "already covered")
	assert.Zero(t, New("card-1").ExtendThrough(d("2024-04-12")), "empty ledger")
}

// randomLedger builds a ledger with gaps of random lengths.
func randomLedger(t *testing.T, r *rand.Rand) *Ledger {
	t.Helper()
	l := New("card-1")
	on := d("2024-01-01")
	n := 1 + r.Intn(15)
	for i := 0; i < n; i++ {
		require.NoError(t, l.Insert(on, decimal.NewFromInt(int64(r.Intn(2000)-1000))))
		on = on.Add(1 + r.Intn(5))
	}
	return l
}

func assertGapless(t *testing.T, l *Ledger) {
	t.Helper()
	var prev *models.BalanceEntry
	for e := range l.Entries() {
		if prev != nil {
			require.Equal(t, 1, prev.Date.DaysUntil(e.Date), "gap between %s and %s", prev.Date, e.Date)
		}
		e := e
		prev = &e
	}
}

func TestFillGapsProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		l := randomLedger(t, r)
		first, _ := l.First()
		last, _ := l.Last()

		l.FillGaps()
		assertGapless(t, l)

		// range is preserved
		gotFirst, _ := l.First()
		gotLast, _ := l.Last()
		require.Equal(t, first.Date, gotFirst.Date)
		require.Equal(t, last.Date, gotLast.Date)
		require.Equal(t, first.Date.DaysUntil(last.Date)+1, l.Len())

		// idempotent
		once := dump(l)
		require.Zero(t, l.FillGaps())
		require.Equal(t, once, dump(l))
	}
}

func TestApplyUpdatePropagationProperty(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		l := randomLedger(t, r)
		l.FillGaps()
		before := l.All()

		target := before[r.Intn(len(before))]
		observed := decimal.NewFromInt(int64(r.Intn(2000) - 1000))
		delta := observed.Sub(target.Balance)

		l.ApplyUpdate(target.Date, observed)

		after := l.All()
		require.Len(t, after, len(before))
		for j := range before {
			require.Equal(t, before[j].Date, after[j].Date)
			want := before[j].Balance
			if !before[j].Date.Before(target.Date) {
				want = want.Add(delta)
			}
			require.True(t, want.Equal(after[j].Balance), "%s: want %s got %s", after[j].Date, want, after[j].Balance)
		}
		assertGapless(t, l)
	}
}

func TestApplyUpdateKeepsLedgerGaplessAndUnique(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		l := randomLedger(t, r)
		for j := 0; j < 10; j++ {
			on := d("2023-12-20").Add(r.Intn(120))
			l.ApplyUpdate(on, decimal.NewFromInt(int64(r.Intn(500))))

			_, err := l.BalanceOn(on)
			require.NoError(t, err)
			assertGapless(t, l)

			seen := map[string]bool{}
			for e := range l.Entries() {
				require.False(t, seen[e.Date.String()], "duplicate %s", e.Date)
				seen[e.Date.String()] = true
			}
		}
	}
}

func TestInsertionGapFillUsesPreviousLastBalance(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		l := randomLedger(t, r)
		l.FillGaps()
		last, _ := l.Last()
		on := last.Date.Add(2 + r.Intn(10))

		l.ApplyUpdate(on, amount("123.45"))

		for e := range l.Entries() {
			if e.Date.After(last.Date) && e.Date.Before(on) {
				require.True(t, last.Balance.Equal(e.Balance), "%s: want %s got %s", e.Date, last.Balance, e.Balance)
			}
		}
		bal, err := l.BalanceOn(on)
		require.NoError(t, err)
		assert.Equal(t, "123.45", bal.String())
	}
}
