package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"placement-predictor/internal/common"
)

var sampleFlags struct {
	rows        int
	seed        uint64
	out         string
	missingRate float64
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate a synthetic training table",
	Long: `Generate a synthetic student table with the default feature columns,
the identifier columns and a Placed label. Useful for smoke-testing bundle
builds without real data.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if sampleFlags.rows <= 0 {
			return fmt.Errorf("--rows must be positive")
		}
		if sampleFlags.missingRate < 0 || sampleFlags.missingRate >= 1 {
			return fmt.Errorf("--missing-rate must be in [0,1)")
		}

		w := cmd.OutOrStdout()
		if sampleFlags.out != "" && sampleFlags.out != "-" {
			f, err := os.Create(sampleFlags.out)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			w = f
		}

		rng := rand.New(rand.NewPCG(sampleFlags.seed, sampleFlags.seed^0x9e3779b97f4a7c15))
		placed, err := writeSample(w, rng, sampleFlags.rows, sampleFlags.missingRate)
		if err != nil {
			return err
		}

		log.Info().
			Int("rows", sampleFlags.rows).
			Int("placed", placed).
			Str("out", sampleFlags.out).
			Msg("sample table written")
		return nil
	},
}

// studentGen draws one feature value.
type studentGen func(rng *rand.Rand) float64

var sampleGenerators = map[string]studentGen{
	"Maths":                     func(r *rand.Rand) float64 { return clamp(r.NormFloat64()*15+65, 0, 100) },
	"Python":                    func(r *rand.Rand) float64 { return clamp(r.NormFloat64()*18+60, 0, 100) },
	"SQL":                       func(r *rand.Rand) float64 { return clamp(r.NormFloat64()*16+62, 0, 100) },
	"Attendance":                func(r *rand.Rand) float64 { return clamp(r.NormFloat64()*10+82, 40, 100) },
	"Mini_Projects":             func(r *rand.Rand) float64 { return float64(r.IntN(6)) },
	"Communication_Score":       func(r *rand.Rand) float64 { return clamp(r.NormFloat64()*1.8+6.5, 1, 10) },
	"Placement_Readiness_Score": func(r *rand.Rand) float64 { return clamp(r.NormFloat64()*14+60, 0, 100) },
}

// Relative weights of each column in the latent placement score.
var sampleWeights = map[string]float64{
	"Maths":                     0.15,
	"Python":                    0.2,
	"SQL":                       0.15,
	"Attendance":                0.1,
	"Mini_Projects":             6,
	"Communication_Score":       2.5,
	"Placement_Readiness_Score": 0.25,
}

var sampleNames = []string{"Asha", "Ben", "Chen", "Dana", "Eve", "Farid", "Gita", "Hugo", "Ines", "Jun"}

// writeSample writes a header and n rows, returning how many rows are placed.
// Feature cells are left blank with probability missingRate.
func writeSample(w io.Writer, rng *rand.Rand, n int, missingRate float64) (int, error) {
	cw := csv.NewWriter(w)

	header := append(append([]string{}, common.DroppedColumns...), common.DefaultFeatures...)
	header = append(header, common.LabelColumn)
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	// centre of the latent score so roughly half the rows are placed
	var centre float64
	for _, name := range common.DefaultFeatures {
		centre += sampleWeights[name] * sampleMean(name)
	}

	placed := 0
	row := make([]string, len(header))
	for i := 0; i < n; i++ {
		row[0] = strconv.Itoa(i + 1)
		row[1] = sampleNames[rng.IntN(len(sampleNames))]

		score := rng.NormFloat64() * 4
		for j, name := range common.DefaultFeatures {
			v := sampleGenerators[name](rng)
			score += sampleWeights[name] * v
			if rng.Float64() < missingRate {
				row[2+j] = ""
				continue
			}
			row[2+j] = strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
		}

		label := "No"
		if score > centre {
			label = "Yes"
			placed++
		}
		row[len(row)-1] = label

		if err := cw.Write(row); err != nil {
			return placed, err
		}
	}

	cw.Flush()
	return placed, cw.Error()
}

func sampleMean(name string) float64 {
	switch name {
	case "Maths":
		return 65
	case "Python":
		return 60
	case "SQL":
		return 62
	case "Attendance":
		return 82
	case "Mini_Projects":
		return 2.5
	case "Communication_Score":
		return 6.5
	case "Placement_Readiness_Score":
		return 60
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func init() {
	f := sampleCmd.Flags()
	f.IntVar(&sampleFlags.rows, "rows", 200, "Number of students to generate")
	f.Uint64Var(&sampleFlags.seed, "seed", 1, "Random seed")
	f.StringVarP(&sampleFlags.out, "out", "o", "-", "Output CSV path (- for stdout)")
	f.Float64Var(&sampleFlags.missingRate, "missing-rate", 0, "Fraction of feature cells left blank")
}
