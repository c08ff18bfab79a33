package main

import (
	"github.com/bornholm/sectioncache/internal/command"
	"github.com/bornholm/sectioncache/internal/command/criteria"
	"github.com/bornholm/sectioncache/internal/command/section"
)

func main() {
	command.Main(
		"sectioncache",
		"Inspect and maintain fetched results section caches",
		section.Command(),
		criteria.Command(),
	)
}
