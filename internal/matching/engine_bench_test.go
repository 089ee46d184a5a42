package matching

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
)

var benchSkills = []string{"python", "sql", "microsoft_excel", "tableau", "statistics", "docker", "git", "aws"}

func BenchmarkRank(b *testing.B) {
	v, err := vocabulary.Default()
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	for _, size := range []int{100, 1000} {
		mem := store.NewMemory()
		job := analystJob.Clone()
		job.ContentHash = "job"
		if err := mem.Insert(ctx, job); err != nil {
			b.Fatal(err)
		}
		for i := 0; i < size; i++ {
			c := candidate(fmt.Sprintf("cand-%04d", i), "tel_aviv", benchSkills[:3+i%6]...)
			c.ContentHash = c.ID
			if err := mem.Insert(ctx, c); err != nil {
				b.Fatal(err)
			}
		}
		engine := NewEngine(mem, vocabulary.NewStaticRegistry(v), Options{DefaultTopK: 20, MaxTopK: 200}, nil)
		req := RankRequest{AnchorID: job.ID, Direction: DirectionCandidates, TopK: 20}

		b.Run(fmt.Sprintf("candidates_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Rank(ctx, "t1", talent.DefaultWeights(), req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
