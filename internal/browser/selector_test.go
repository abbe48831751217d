package browser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/qbsync/internal/shared"
)

func TestXPathLiteral(t *testing.T) {
	tt := []struct {
		in   string
		want string
	}{
		{"Discover Weekly", "'Discover Weekly'"},
		{"Rock 'n' Roll", `"Rock 'n' Roll"`},
		{`Say "hi"`, `'Say "hi"'`},
		{`It's "fine"`, `concat('It', "'", 's "fine"')`},
		{`'edge'`, `"'edge'"`},
	}
	for _, tc := range tt {
		if got := XPathLiteral(tc.in); got != tc.want {
			t.Errorf("XPathLiteral(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestExactText(t *testing.T) {
	sels := ExactText("  Spotify Discover &  Release ", "div", "span", "a")
	if len(sels) != 3 {
		t.Fatalf("expected 3 selectors, got %d", len(sels))
	}
	want := "//span[normalize-space(text())='Spotify Discover & Release']"
	if sels[1].Query != want {
		t.Errorf("got %s, want %s", sels[1].Query, want)
	}
	if sels[0].CSS {
		t.Error("ExactText should build XPath selectors")
	}
}

func TestContainsText(t *testing.T) {
	got := ContainsText("li", "Add to playlist", "Add to a playlist").Query
	want := "//li[contains(text(), 'Add to playlist') or contains(text(), 'Add to a playlist')]"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSelectorWithin(t *testing.T) {
	item := XPath("//div[contains(@class,'track-item')]")
	btn := XPath(".//button[contains(@class,'options')]").Within(item)
	want := "(//div[contains(@class,'track-item')])[1]//button[contains(@class,'options')]"
	if btn.Query != want {
		t.Errorf("got %s, want %s", btn.Query, want)
	}
}

func TestDetectCaptcha(t *testing.T) {
	tt := map[string]bool{
		"<div class='g-recaptcha'></div>":          true,
		"<p>Please confirm you are not a ROBOT</p>": true,
		"<h1>Are you a robot?</h1>":                 true,
		"<p>Prove you are not a bot</p>":            true,
		"<div class='user-menu'>Welcome</div>":      false,
		`<meta name="robots" content="index">`:      false,
	}
	for html, want := range tt {
		if got := DetectCaptcha(html); got != want {
			t.Errorf("DetectCaptcha(%q) = %v, want %v", html, got, want)
		}
	}
}

func TestWaitAny(t *testing.T) {
	a, b := XPath("//a"), XPath("//b")

	t.Run("first match in order", func(t *testing.T) {
		count := func(s Selector) (int, error) { return 1, nil }
		got, err := waitAny([]Selector{a, b}, time.Second, 100*time.Millisecond, count, func(time.Duration) error { return nil })
		if err != nil || got != a {
			t.Errorf("expected %s, got %s (%v)", a, got, err)
		}
	})

	t.Run("polls until a later round", func(t *testing.T) {
		calls := 0
		count := func(s Selector) (int, error) {
			calls++
			if s == b && calls > 4 {
				return 2, nil
			}
			return 0, nil
		}
		pauses := 0
		got, err := waitAny([]Selector{a, b}, time.Second, 100*time.Millisecond, count, func(time.Duration) error { pauses++; return nil })
		if err != nil || got != b {
			t.Fatalf("expected %s, got %s (%v)", b, got, err)
		}
		if pauses != 2 {
			t.Errorf("expected 2 pauses, got %d", pauses)
		}
	})

	t.Run("gives up after the timeout", func(t *testing.T) {
		rounds := 0
		count := func(s Selector) (int, error) {
			if s == a {
				rounds++
			}
			return 0, nil
		}
		_, err := waitAny([]Selector{a, b}, 500*time.Millisecond, 100*time.Millisecond, count, func(time.Duration) error { return nil })
		if !errors.Is(err, shared.ErrElementNotFound) {
			t.Fatalf("expected ErrElementNotFound, got %v", err)
		}
		if rounds != 6 {
			t.Errorf("expected 6 rounds, got %d", rounds)
		}
		if !strings.Contains(err.Error(), "//a | //b") {
			t.Errorf("error should name the selectors: %v", err)
		}
	})

	t.Run("zero timeout still checks once", func(t *testing.T) {
		checked := 0
		count := func(Selector) (int, error) { checked++; return 0, nil }
		_, _ = waitAny([]Selector{a}, 0, pollInterval, count, func(time.Duration) error { t.Fatal("should not pause"); return nil })
		if checked != 1 {
			t.Errorf("expected one check, got %d", checked)
		}
	})

	t.Run("count errors abort", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := waitAny([]Selector{a}, time.Second, pollInterval, func(Selector) (int, error) { return 0, boom }, nil)
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		if _, err := waitAny(nil, time.Second, pollInterval, nil, nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestTypist(t *testing.T) {
	typist := NewTypist(80*time.Millisecond, 20*time.Millisecond)
	if typist.Min != 20*time.Millisecond || typist.Max != 80*time.Millisecond {
		t.Fatalf("bounds not normalized: %+v", typist)
	}

	for range 200 {
		d := typist.Delay('x')
		if d < typist.Min || d > typist.Max {
			t.Fatalf("delay %v outside [%v, %v]", d, typist.Min, typist.Max)
		}
	}

	fixed := NewTypist(100*time.Millisecond, 100*time.Millisecond)
	if fixed.Delay('a') != 100*time.Millisecond {
		t.Errorf("fixed typist should always return min")
	}
	if fixed.Delay(' ') != 150*time.Millisecond {
		t.Errorf("word break should pause longer, got %v", fixed.Delay(' '))
	}
}
