/*
The sync package copies the files that a comparison found missing from the
target tree.

Files are never copied over the target's own files. Instead, every file is
placed in a quarantine folder, `from_master`, at the root of the target tree,
at the same position relative to that folder as it had relative to the master
root. For example, with a master root of `/master` and a target root of
`/target`, `/master/day1/A001/C001.mov` is copied to
`/target/from_master/day1/A001/C001.mov`.

Copies preserve the file's permission bits and modification time. The master
tree is only ever read.

Each copy is written to a temporary file beside its destination and renamed
into place. Syncing the same comparison twice therefore leaves the same final
contents, even if the previous copies are read-only.

By default, the first failure stops the sync, and no further copies are
started. Copies that already finished are left in place.
*/
package sync
