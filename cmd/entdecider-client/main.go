// The entdecider-client binary handles entertainment-decider:// play
// links from the web pages. It resolves the linked video and hands it
// to a local player, resuming at the stored progress.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/entdecider/entdecider/internal/logger"
	"github.com/entdecider/entdecider/internal/platform"
)

const defaultPlayer = "mpv"

func main() {
	log := logger.New(logger.Config{Level: "info", Format: "console"})
	defer log.Close()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "play":
		if len(os.Args) != 3 {
			usage()
			os.Exit(2)
		}
		req, err := platform.ParsePlayLink(os.Args[2])
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse play link")
		}
		if err := play(req); err != nil {
			log.Fatal().Err(err).Str("uri", req.VideoURI).Msg("failed to play")
		}

	case "register":
		exe, err := os.Executable()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to resolve executable path")
		}
		if err := platform.RegisterURIScheme(exe); err != nil {
			log.Fatal().Err(err).Msg("failed to register URI scheme")
		}
		log.Info().Str("executable", exe).Msg("registered as play link handler")

	case "desktop-file":
		exe, err := os.Executable()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to resolve executable path")
		}
		fmt.Print(platform.DesktopEntry(exe))

	default:
		usage()
		os.Exit(2)
	}
}

// play launches the configured player. ENTDECIDER_PLAYER overrides the
// default, the player must understand mpv style --start offsets.
func play(req *platform.PlayRequest) error {
	player := os.Getenv("ENTDECIDER_PLAYER")
	if player == "" {
		player = defaultPlayer
	}

	var args []string
	if req.Start > 0 {
		args = append(args, fmt.Sprintf("--start=%d", req.Start))
	}
	args = append(args, req.VideoURI)

	cmd := exec.Command(player, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  entdecider-client play <entertainment-decider:// link>
  entdecider-client register
  entdecider-client desktop-file`)
}
