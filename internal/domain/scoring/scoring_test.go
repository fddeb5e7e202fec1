package scoring_test

import (
	"testing"

	"github.com/okian/bookfinder/internal/domain/model"
	scoring "github.com/okian/bookfinder/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScorer_Score(t *testing.T) {
	Convey("Given a default scorer", t, func() {
		scorer := scoring.New()
		rating := 4.2

		Convey("When scoring a complete record", func() {
			r := model.SearchResult{
				Title:         "Dune",
				CoverURL:      "https://covers.openlibrary.org/b/id/1-M.jpg",
				ISBN13:        "9780441172719",
				AverageRating: &rating,
				PublishedDate: "1965",
			}

			Convey("Then every weight should count", func() {
				So(scorer.Score(r), ShouldEqual, 18)
			})
		})

		Convey("When scoring a bare record", func() {
			So(scorer.Score(model.SearchResult{Title: "Untitled"}), ShouldEqual, 0)
		})

		Convey("When the rating is zero", func() {
			zero := 0.0
			So(scorer.Score(model.SearchResult{AverageRating: &zero}), ShouldEqual, 0)
		})
	})

	Convey("Given custom weights", t, func() {
		scorer := scoring.New(scoring.WithWeights(1, 100, -1, 0))

		Convey("Then they should replace the defaults except negatives", func() {
			rating := 3.0
			So(scorer.Score(model.SearchResult{ISBN13: "x", CoverURL: "y", AverageRating: &rating, PublishedDate: "2024"}), ShouldEqual, 103)
		})
	})
}

func TestScorer_Rank(t *testing.T) {
	Convey("Given results of mixed completeness", t, func() {
		results := []model.SearchResult{
			{Title: "a", PublishedDate: "2020"},
			{Title: "b", CoverURL: "c"},
			{Title: "c", PublishedDate: "2021"},
			{Title: "d", ISBN13: "9780441172719", CoverURL: "c"},
		}

		scoring.New().Rank(results)

		Convey("Then they should be ordered by score with stable ties", func() {
			titles := make([]string, len(results))
			for i, r := range results {
				titles[i] = r.Title
			}
			So(titles, ShouldResemble, []string{"d", "b", "a", "c"})
		})
	})
}
