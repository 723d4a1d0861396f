// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package search provides semantic search over stored page segments.
//
// The Searcher embeds a query, runs the store's native vector search scoped
// to an optional collection, joins each hit with its source document, and
// applies a verbatim keyword boost with stop-word filtering.
//
// The Ranker carries the ordering contract on its own: cosine similarity,
// descending, with ties kept in candidate insertion order. It performs no
// I/O and can merge candidate sets from several storage queries.
package search
