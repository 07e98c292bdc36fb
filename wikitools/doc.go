// Package wikitools defines the wiki tool set a gateway deployment exposes:
// space listing, page search, page retrieval, page creation, and comment
// listing against a Confluence-style REST upstream. The listing tools all
// share the pagewalk aggregator; the handlers themselves stay thin.
package wikitools
