package docker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/rs/zerolog"
)

// DrainMessages consumes a Docker progress stream (pull or build output),
// logging each line at debug level. It returns the first error the daemon
// reports in the stream.
func DrainMessages(r io.Reader, log zerolog.Logger) error {
	dec := json.NewDecoder(r)
	for {
		var jm jsonmessage.JSONMessage
		if err := dec.Decode(&jm); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode progress stream: %w", err)
		}
		if jm.Error != nil {
			return jm.Error
		}
		switch {
		case jm.Stream != "":
			if line := strings.TrimSpace(jm.Stream); line != "" {
				log.Debug().Msg(line)
			}
		case jm.Status != "":
			log.Debug().Str("id", jm.ID).Msg(jm.Status)
		}
	}
}
