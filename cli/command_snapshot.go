package cli

// commandSnapshot groups snapshot subcommands.
type commandSnapshot struct {
	list     commandSnapshotList
	show     commandSnapshotShow
	download commandSnapshotDownload
	delete   commandSnapshotDelete
}

func (c *commandSnapshot) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("snapshot", "Commands to inspect, download and delete backup snapshots.").Alias("snap").Alias("backup")

	c.list.setup(svc, cmd)
	c.show.setup(svc, cmd)
	c.download.setup(svc, cmd)
	c.delete.setup(svc, cmd)
}
