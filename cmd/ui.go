package main

import (
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/huskychat/huskychat/internal/models"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func printAnswer(answer *models.Answer) {
	assistant := color.New(color.FgCyan).PrintfFunc()
	dim := color.New(color.Faint).PrintfFunc()

	assistant("\nAssistant: %s\n", answer.Text)

	if len(answer.Sources) > 0 {
		dim("\nSources:\n")
		for _, src := range answer.Sources {
			title := src.Title
			if title == "" {
				title = src.URL
			}
			dim("  %d. %s (%.0f%% match)\n", src.Rank, title, src.Similarity*100)
		}
	}

	dim("\nConfidence: %s (%.0f%%) | %d documents | %s\n",
		answer.Confidence,
		answer.ConfidencePercent,
		answer.DocumentsSearched,
		answer.Timing.Total.Round(time.Millisecond))
}
