package usecase

import (
	"reflect"
	"testing"
)

func TestTokenizeLowerSplitsOnPunctuation(t *testing.T) {
	got := tokenizeLower("Jam buka, Kantor-Desa 08:00!")
	want := []string{"jam", "buka", "kantor", "desa", "08", "00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokenizeLower = %v, want %v", got, want)
	}
}

func TestSignificantTokensDropsShortWords(t *testing.T) {
	got := significantTokens("di ke yg kantor desa")
	want := []string{"kantor", "desa"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("significantTokens = %v, want %v", got, want)
	}
}

func TestJaccardFractions(t *testing.T) {
	full := "alpha bravo charlie delta echo foxtrot golf hotel india juliett"

	cases := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", full, full, 1.0},
		{"seven of ten shared", full, "alpha bravo charlie delta echo foxtrot golf", 0.7},
		{"six of ten shared", full, "alpha bravo charlie delta echo foxtrot", 0.6},
		{"disjoint", full, "satu dua tiga", 0.0},
		{"empty side", full, "", 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := jaccard(toTokenSet(tc.a), toTokenSet(tc.b))
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestJaccardIsSymmetric(t *testing.T) {
	a := toTokenSet("kepala desa sukamaju budi santoso")
	b := toTokenSet("kepala desa sukamaju andi wijaya periode baru")
	if jaccard(a, b) != jaccard(b, a) {
		t.Fatalf("jaccard should not depend on argument order")
	}
}
