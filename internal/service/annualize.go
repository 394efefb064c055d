package service

// Annualize projects a partial-year actual onto a full-year total using the
// seasonality percentage covering the same months. A non-positive actual or
// weight yields 0 rather than an error: a zero basis means "do not plan
// anything", which downstream code expresses by not writing rows.
func Annualize(ytdActual, ytdWeightPercent float64) float64 {
	if ytdActual <= 0 || ytdWeightPercent <= 0 {
		return 0
	}
	return ytdActual / (ytdWeightPercent / 100)
}
