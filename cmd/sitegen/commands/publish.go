package commands

import ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"

// PublishCmd is reserved for uploading the generated site.
type PublishCmd struct{}

func (c *PublishCmd) Run(_ *Global, _ *CLI) error {
	return ferrors.ValidationError("publish is not implemented").Build()
}
