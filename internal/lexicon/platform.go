package lexicon

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPlatform is returned for identifiers that are not WIGOS ids.
var ErrInvalidPlatform = errors.New("invalid WIGOS identifier")

const (
	maxWIGOSBlock       = 65534
	maxLocalIDLength    = 16
	wigosBlockCount     = 4
	wigosBlockSeparator = "-"
)

// ValidatePlatform checks the A-B-C-D shape of a WIGOS station id: A, B and
// C are integers in [0, 65534] and D is 1 to 16 characters.
func ValidatePlatform(id string) error {
	blocks := strings.Split(id, wigosBlockSeparator)
	if len(blocks) != wigosBlockCount {
		return fmt.Errorf("%w: %q must have %d blocks separated by %q", ErrInvalidPlatform, id, wigosBlockCount, wigosBlockSeparator)
	}

	for i, block := range blocks[:3] {
		n, err := strconv.Atoi(block)
		if err != nil || n < 0 || n > maxWIGOSBlock {
			return fmt.Errorf("%w: %q block %d must be an integer between 0 and %d", ErrInvalidPlatform, id, i+1, maxWIGOSBlock)
		}
	}

	if l := len(blocks[3]); l < 1 || l > maxLocalIDLength {
		return fmt.Errorf("%w: %q local identifier must be 1 to %d characters", ErrInvalidPlatform, id, maxLocalIDLength)
	}

	return nil
}
